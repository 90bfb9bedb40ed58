package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/metrics"
)

// LocalConfig defines tunable behaviour for password authentication.
type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
	Hasher           crypto.Hasher
}

// AuthenticateInput carries the credential pair and the caller's origin.
type AuthenticateInput struct {
	Email     string
	Password  string
	IPAddress string
}

// PrincipalStore looks principals up by email and stamps successful logins.
type PrincipalStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	RecordLogin(ctx context.Context, principalID, ipAddress string, at time.Time) error
}

// Authenticator verifies email/password credentials with account lockout.
type Authenticator struct {
	db         *gorm.DB
	principals PrincipalStore
	hasher     crypto.Hasher
	clock      func() time.Time
	threshold  int
	duration   time.Duration
}

// NewAuthenticator builds an Authenticator with defaults of five attempts and a fifteen minute lockout.
func NewAuthenticator(db *gorm.DB, principals PrincipalStore, cfg LocalConfig) (*Authenticator, error) {
	if db == nil {
		return nil, errors.New("authenticator: db is required")
	}
	if principals == nil {
		return nil, errors.New("authenticator: principal store is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	duration := cfg.LockoutDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = crypto.DefaultHasher
	}

	return &Authenticator{
		db:         db,
		principals: principals,
		hasher:     hasher,
		clock:      clock,
		threshold:  threshold,
		duration:   duration,
	}, nil
}

// Authenticate returns the principal matching the credentials. Inactive and
// deleted principals never authenticate.
func (a *Authenticator) Authenticate(ctx context.Context, input AuthenticateInput) (*models.Principal, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	principal, err := a.principals.GetByEmail(ctx, email)
	if apperrors.IsNotFound(err) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := a.clock()

	if principal.LockedUntil != nil && principal.LockedUntil.After(now) {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		return nil, apperrors.ErrAccountLocked
	}

	if principal.LockedUntil != nil {
		principal.LockedUntil = nil
		principal.FailedAttempts = 0
		if err := a.db.WithContext(ctx).Model(principal).Updates(map[string]any{
			"locked_until":    nil,
			"failed_attempts": 0,
		}).Error; err != nil {
			return nil, authStoreFailure("reset lock state", err)
		}
	}

	if !a.hasher.Verify(principal.Password, input.Password) {
		return nil, a.handleFailedAttempt(ctx, principal, now)
	}

	if !principal.CanAct() {
		metrics.AuthAttempts.WithLabelValues("inactive").Inc()
		return nil, apperrors.ErrAccountInactive
	}

	ip := strings.TrimSpace(input.IPAddress)
	if err := a.principals.RecordLogin(ctx, principal.ID, ip, now); err != nil {
		return nil, err
	}
	principal.FailedAttempts = 0
	principal.LockedUntil = nil
	principal.LastLoginAt = &now
	principal.LastLoginIP = ip

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return principal, nil
}

func (a *Authenticator) handleFailedAttempt(ctx context.Context, principal *models.Principal, now time.Time) error {
	principal.FailedAttempts++

	updates := map[string]any{"failed_attempts": principal.FailedAttempts}
	locked := principal.FailedAttempts >= a.threshold
	if locked {
		lockUntil := now.Add(a.duration)
		principal.LockedUntil = &lockUntil
		updates["locked_until"] = lockUntil
	}

	if err := a.db.WithContext(ctx).Model(principal).Updates(updates).Error; err != nil {
		return authStoreFailure("update failed attempts", err)
	}

	if locked {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		logger.WithModule("auth").Warn("account locked after repeated failures",
			zap.String("principal_id", principal.ID),
			zap.Int("failed_attempts", principal.FailedAttempts),
		)
		return apperrors.ErrAccountLocked
	}

	metrics.AuthAttempts.WithLabelValues("failure").Inc()
	return apperrors.ErrInvalidCredentials
}

func authStoreFailure(scope string, err error) error {
	return fmt.Errorf("authenticator: %s: %w", scope, apperrors.ErrStoreUnavailable.WithInternal(err))
}
