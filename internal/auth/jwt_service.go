package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
const DefaultAccessTokenTTL = 15 * time.Minute

var (
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt: secret must be provided")

	// ErrAccessTokenExpired signals a well-formed token past its expiry.
	// Clients are expected to refresh instead of re-authenticating.
	ErrAccessTokenExpired = apperrors.New("TOKEN_EXPIRED", "Access token has expired", http.StatusUnauthorized)

	// ErrAccessTokenInvalid covers every other rejection.
	ErrAccessTokenInvalid = apperrors.New("TOKEN_INVALID", "Invalid access token", http.StatusUnauthorized)
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
	Leeway         time.Duration
	Clock          func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	PrincipalID string `json:"pid"`
	SessionID   string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenInput holds the parameters used when generating a new access token.
type AccessTokenInput struct {
	PrincipalID string
	SessionID   string
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	audience := strings.TrimSpace(cfg.Audience)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      now,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// TTL reports the configured access token lifetime.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateAccessToken issues a signed JWT for the principal.
func (s *JWTService) GenerateAccessToken(input AccessTokenInput) (string, error) {
	principalID := strings.TrimSpace(input.PrincipalID)
	if principalID == "" {
		return "", errors.New("jwt: principal id is required")
	}

	issuedAt := s.now()
	registered := jwt.RegisteredClaims{
		Subject:   principalID,
		Issuer:    s.issuer,
		ID:        input.SessionID,
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}
	if s.audience != "" {
		registered.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		PrincipalID:      principalID,
		SessionID:        input.SessionID,
		RegisteredClaims: registered,
	}).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and validates a signed JWT, returning the application claims.
// Failures are AppErrors: ErrAccessTokenExpired for stale tokens and
// ErrAccessTokenInvalid otherwise, with the parser error kept as the cause.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrAccessTokenInvalid.WithInternal(jwt.ErrTokenMalformed)
	}

	var claims Claims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, s.key); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired.WithInternal(err)
		}
		return nil, ErrAccessTokenInvalid.WithInternal(err)
	}

	if claims.PrincipalID == "" || claims.Subject != claims.PrincipalID {
		return nil, ErrAccessTokenInvalid.WithInternal(errors.New("jwt: principal claim mismatch"))
	}
	return &claims, nil
}

func (s *JWTService) key(*jwt.Token) (any, error) {
	return s.secret, nil
}
