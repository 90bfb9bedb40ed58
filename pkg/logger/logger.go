// Package logger holds the process-wide zap logger. Packages obtain a child
// with WithModule; tests swap in an observer with Replace.
package logger

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Config selects the level and encoding of the global logger.
type Config struct {
	// Level is a zap level name; unknown or empty values mean info.
	Level string
	// Format is "json" or "console". Empty picks console in development.
	Format string
	// Development enables caller stack traces on warnings.
	Development bool
	// Fields are attached to every entry, for example the service name.
	Fields map[string]string
}

// Init builds a logger from cfg and installs it globally.
func Init(cfg Config) error {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	switch format := strings.ToLower(strings.TrimSpace(cfg.Format)); format {
	case "":
	case "json", "console":
		zcfg.Encoding = format
	default:
		return fmt.Errorf("logger: unsupported format %q", cfg.Format)
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(cfg.Fields) > 0 {
		zcfg.InitialFields = make(map[string]any, len(cfg.Fields))
		for k, v := range cfg.Fields {
			zcfg.InitialFields[k] = v
		}
	}

	built, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("logger: build: %w", err)
	}
	global.Store(built)
	return nil
}

// Logger returns the global logger. It is a no-op logger until Init runs.
func Logger() *zap.Logger {
	return global.Load()
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// Replace installs l (nil means no-op) and returns a func restoring the previous logger.
func Replace(l *zap.Logger) func() {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

// WithModule returns a child logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
