package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	report, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(cfg.Auth.JWT.Secret), minJWTSecretLength)
	require.Equal(t, []string{"auth.jwt.secret"}, report.Generated)
	require.Len(t, report.Warnings, 1)
	require.NotContains(t, report.Warnings[0], cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 40)

	report, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, report.Generated)
	require.Empty(t, report.Warnings)
	require.Equal(t, strings.Repeat("a", 40), cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsWarnsOnShortSecret(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "short"

	report, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, report.Generated)
	require.Len(t, report.Warnings, 1)
	require.Equal(t, "short", cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsRateLimitFloor(t *testing.T) {
	cfg := &Config{RateLimit: RateLimitConfig{Enabled: true}}

	_, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)

	disabled := &Config{}
	_, err = ApplyRuntimeDefaults(disabled)
	require.NoError(t, err)
	require.Zero(t, disabled.RateLimit.Requests)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.EqualError(t, err, "config is nil")
}
