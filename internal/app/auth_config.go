package app

import (
	"time"

	"github.com/charlesng35/adminhub/internal/auth"
)

const (
	defaultRefreshLength    = 48
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// JWTServiceConfig maps auth.jwt onto auth.JWTConfig.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		Audience:       c.JWT.Audience,
		AccessTokenTTL: positiveOr(c.JWT.TTL, auth.DefaultAccessTokenTTL),
		Leeway:         c.JWT.Leeway,
	}
}

// SessionServiceConfig maps auth.session onto auth.SessionConfig. The cache
// is attached by the caller once the store is known.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	return auth.SessionConfig{
		RefreshTokenTTL: positiveOr(c.Session.RefreshTTL, auth.DefaultRefreshTokenTTL),
		RefreshLength:   positiveOr(c.Session.RefreshLength, defaultRefreshLength),
	}
}

// LocalAuthConfig maps auth.local onto the authenticator's lockout policy.
func (c AuthConfig) LocalAuthConfig() auth.LocalConfig {
	return auth.LocalConfig{
		LockoutThreshold: positiveOr(c.Local.LockoutThreshold, defaultLockoutThreshold),
		LockoutDuration:  positiveOr(c.Local.LockoutDuration, defaultLockoutDuration),
	}
}

func positiveOr[T ~int | ~int64](value, fallback T) T {
	if value > 0 {
		return value
	}
	return fallback
}
