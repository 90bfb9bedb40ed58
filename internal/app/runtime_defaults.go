package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/adminhub/pkg/crypto"
)

const (
	jwtSecretBytes     = 48
	minJWTSecretLength = 32
)

// RuntimeReport lists the adjustments ApplyRuntimeDefaults made. Values are
// config keys only, never secrets.
type RuntimeReport struct {
	Generated []string
	Warnings  []string
}

// ApplyRuntimeDefaults fills values the server cannot start without and clamps
// settings that would otherwise disable a safeguard.
func ApplyRuntimeDefaults(cfg *Config) (RuntimeReport, error) {
	var report RuntimeReport
	if cfg == nil {
		return report, errors.New("config is nil")
	}

	secret := strings.TrimSpace(cfg.Auth.JWT.Secret)
	switch {
	case secret == "":
		generated, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return report, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = generated
		report.Generated = append(report.Generated, "auth.jwt.secret")
		report.Warnings = append(report.Warnings, "auth.jwt.secret was generated; tokens will not survive a restart")
	case len(secret) < minJWTSecretLength:
		report.Warnings = append(report.Warnings, fmt.Sprintf("auth.jwt.secret is shorter than %d characters", minJWTSecretLength))
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Requests <= 0 {
			cfg.RateLimit.Requests = 100
		}
		if cfg.RateLimit.Window <= 0 {
			cfg.RateLimit.Window = time.Minute
		}
	}

	return report, nil
}
