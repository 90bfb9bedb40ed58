package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/metrics"
)

const (
	// DefaultRefreshTokenTTL applies when SessionConfig.RefreshTokenTTL is unset.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	defaultRefreshTokenLength = 48
)

// SessionConfig tunes a SessionService. Cache is optional.
type SessionConfig struct {
	RefreshTokenTTL time.Duration
	RefreshLength   int
	Clock           func() time.Time
	Cache           SessionCache
}

// SessionMetadata is the client context recorded on a new session.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

var (
	ErrSessionNotFound     = apperrors.New("SESSION_NOT_FOUND", "Session not found", http.StatusUnauthorized)
	ErrSessionRevoked      = apperrors.New("SESSION_REVOKED", "Session has been revoked", http.StatusUnauthorized)
	ErrSessionExpired      = apperrors.New("SESSION_EXPIRED", "Session has expired", http.StatusUnauthorized)
	ErrSessionInvalidToken = apperrors.New("SESSION_INVALID_TOKEN", "Invalid refresh token", http.StatusUnauthorized)
)

// SessionService issues, rotates and revokes refresh-token sessions. Refresh
// tokens leave the service once, in the TokenPair; only digests are stored.
type SessionService struct {
	db         *gorm.DB
	jwt        *JWTService
	refreshTTL time.Duration
	tokenLen   int
	now        func() time.Time
	cache      SessionCache
}

// NewSessionService wires a SessionService over db and jwtService.
func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	switch {
	case db == nil:
		return nil, errors.New("session service: db is required")
	case jwtService == nil:
		return nil, errors.New("session service: jwt service is required")
	}

	svc := &SessionService{
		db:         db,
		jwt:        jwtService,
		refreshTTL: cfg.RefreshTokenTTL,
		tokenLen:   cfg.RefreshLength,
		now:        cfg.Clock,
		cache:      cfg.Cache,
	}
	if svc.refreshTTL <= 0 {
		svc.refreshTTL = DefaultRefreshTokenTTL
	}
	if svc.tokenLen <= 0 {
		svc.tokenLen = defaultRefreshTokenLength
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// CreateSession opens a session for principalID and returns its first token pair.
func (s *SessionService) CreateSession(ctx context.Context, principalID string, meta SessionMetadata) (TokenPair, *models.Session, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(principalID) == "" {
		return TokenPair{}, nil, errors.New("session service: principal id is required")
	}

	refresh, digest, err := s.newRefreshToken()
	if err != nil {
		return TokenPair{}, nil, err
	}

	now := s.now()
	session := &models.Session{
		PrincipalID: principalID,
		RefreshHash: digest,
		IPAddress:   strings.TrimSpace(meta.IPAddress),
		UserAgent:   strings.TrimSpace(meta.UserAgent),
		ExpiresAt:   now.Add(s.refreshTTL),
		LastUsedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return TokenPair{}, nil, storeFailure("create session", err)
	}
	metrics.ActiveSessions.Inc()

	pair, err := s.issue(session, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.remember(ctx, session)
	return pair, session, nil
}

// RefreshSession swaps refreshToken for a new pair. The old token stops
// working even if two refreshes race: only one rotation can match it.
func (s *SessionService) RefreshSession(ctx context.Context, refreshToken string) (TokenPair, *models.Session, error) {
	ctx = ensureContext(ctx)
	digest, ok := refreshDigest(refreshToken)
	if !ok {
		return TokenPair{}, nil, ErrSessionInvalidToken
	}

	session, err := s.lookup(ctx, digest)
	if err != nil {
		return TokenPair{}, nil, err
	}

	now := s.now()
	if err := statusError(session.Status(now)); err != nil {
		return TokenPair{}, nil, err
	}

	refresh, nextDigest, err := s.newRefreshToken()
	if err != nil {
		return TokenPair{}, nil, err
	}

	expiresAt := now.Add(s.refreshTTL)
	result := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND refresh_hash = ? AND revoked_at IS NULL", session.ID, digest).
		Updates(map[string]any{
			"refresh_hash": nextDigest,
			"expires_at":   expiresAt,
			"last_used_at": now,
		})
	if result.Error != nil {
		return TokenPair{}, nil, storeFailure("rotate session", result.Error)
	}
	s.forget(ctx, digest)
	if result.RowsAffected == 0 {
		return TokenPair{}, nil, ErrSessionNotFound
	}

	session.RefreshHash = nextDigest
	session.ExpiresAt = expiresAt
	session.LastUsedAt = now

	pair, err := s.issue(session, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.remember(ctx, session)
	return pair, session, nil
}

// ValidateSession checks that the session behind an access token is still live.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID string) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}

	var session models.Session
	err := s.db.WithContext(ctx).Select("id", "revoked_at", "expires_at").Take(&session, "id = ?", sessionID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrSessionNotFound
	case err != nil:
		return storeFailure("validate session", err)
	}
	return statusError(session.Status(s.now()))
}

// RevokeSession ends one session. Revoking an unknown or already revoked
// session reports ErrSessionNotFound.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidToken
	}

	revoked, err := s.revokeWhere(ctx, "revoke session", "id = ? AND revoked_at IS NULL", sessionID)
	if err != nil {
		return err
	}
	if revoked == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokePrincipalSessions ends every live session of principalID and returns how many.
func (s *SessionService) RevokePrincipalSessions(ctx context.Context, principalID string) (int64, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(principalID) == "" {
		return 0, ErrSessionInvalidToken
	}
	return s.revokeWhere(ctx, "revoke principal sessions", "principal_id = ? AND revoked_at IS NULL", principalID)
}

// SyncActiveGauge recounts live sessions and resets the active-sessions gauge,
// which otherwise starts from zero on every boot.
func (s *SessionService) SyncActiveGauge(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var live int64
	if err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("expires_at > ? AND revoked_at IS NULL", s.now()).
		Count(&live).Error; err != nil {
		return 0, storeFailure("count active sessions", err)
	}
	metrics.ActiveSessions.Set(float64(live))
	return live, nil
}

// CleanupExpired deletes expired and revoked sessions.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	db := s.db.WithContext(ctx)

	var stillCounted int64
	if err := db.Model(&models.Session{}).
		Where("expires_at < ? AND revoked_at IS NULL", now).
		Count(&stillCounted).Error; err != nil {
		return 0, storeFailure("count expired sessions", err)
	}

	const dead = "expires_at < ? OR revoked_at IS NOT NULL"
	digests := s.digestsWhere(ctx, dead, now)

	result := db.Where(dead, now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, storeFailure("cleanup sessions", result.Error)
	}

	s.forget(ctx, digests...)
	if stillCounted > 0 {
		metrics.ActiveSessions.Sub(float64(stillCounted))
	}
	return result.RowsAffected, nil
}

// lookup finds the session for digest, preferring the cache.
func (s *SessionService) lookup(ctx context.Context, digest string) (*models.Session, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, digest); err == nil && cached != nil {
			return cached, nil
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where("refresh_hash = ?", digest).Take(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, storeFailure("find session", err)
	}
	return &session, nil
}

func (s *SessionService) revokeWhere(ctx context.Context, scope, query string, args ...any) (int64, error) {
	digests := s.digestsWhere(ctx, query, args...)

	result := s.db.WithContext(ctx).Model(&models.Session{}).Where(query, args...).Update("revoked_at", s.now())
	if result.Error != nil {
		return 0, storeFailure(scope, result.Error)
	}

	s.forget(ctx, digests...)
	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// digestsWhere collects refresh digests for cache eviction. Without a cache it
// skips the query.
func (s *SessionService) digestsWhere(ctx context.Context, query string, args ...any) []string {
	if s.cache == nil {
		return nil
	}
	var digests []string
	_ = s.db.WithContext(ctx).Model(&models.Session{}).Where(query, args...).Pluck("refresh_hash", &digests).Error
	return digests
}

func (s *SessionService) remember(ctx context.Context, session *models.Session) {
	if s.cache != nil {
		_ = s.cache.Set(ctx, session, s.refreshTTL)
	}
}

func (s *SessionService) forget(ctx context.Context, digests ...string) {
	if s.cache == nil {
		return
	}
	for _, digest := range digests {
		_ = s.cache.Delete(ctx, digest)
	}
}

func (s *SessionService) newRefreshToken() (token, digest string, err error) {
	token, err = crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return "", "", fmt.Errorf("session service: generate refresh token: %w", err)
	}
	digest, _ = refreshDigest(token)
	return token, digest, nil
}

func (s *SessionService) issue(session *models.Session, refreshToken string) (TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		PrincipalID: session.PrincipalID,
		SessionID:   session.ID,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: generate access token: %w", err)
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwt.TTL().Seconds()),
	}, nil
}

func statusError(status models.SessionStatus) error {
	switch status {
	case models.SessionRevoked:
		return ErrSessionRevoked
	case models.SessionExpired:
		return ErrSessionExpired
	default:
		return nil
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func storeFailure(scope string, err error) error {
	return fmt.Errorf("session service: %s: %w", scope, apperrors.ErrStoreUnavailable.WithInternal(err))
}
