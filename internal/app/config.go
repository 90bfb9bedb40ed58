package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/pkg/validator"
)

// Config represents the runtime configuration for the AdminHub backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int            `mapstructure:"port" validate:"gte=1,lte=65535"`
	LogLevel        string         `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat       string         `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
	GinDebug        bool           `mapstructure:"gin_debug"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	Security        SecurityConfig `mapstructure:"security"`
}

// SecurityConfig controls the response hardening headers.
type SecurityConfig struct {
	SSLRedirect  bool     `mapstructure:"ssl_redirect"`
	HSTSSeconds  int64    `mapstructure:"hsts_seconds" validate:"gte=0"`
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"omitempty,oneof=sqlite sqlite3 postgres postgresql pg mysql mariadb"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
	Pool     DBPoolConfig `mapstructure:"pool"`
}

// DBPoolConfig bounds the connection pool and flags slow queries.
type DBPoolConfig struct {
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT     JWTSettings       `mapstructure:"jwt"`
	Session SessionSettings   `mapstructure:"session"`
	Local   LocalAuthSettings `mapstructure:"local"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
	Leeway   time.Duration `mapstructure:"leeway"`
}

// SessionSettings configures refresh tokens and session lifetimes.
type SessionSettings struct {
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	RefreshLength int           `mapstructure:"refresh_token_length"`
}

// LocalAuthSettings defines lockout controls for credential verification.
type LocalAuthSettings struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// MaintenanceConfig holds cron specifications for background cleanup.
type MaintenanceConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	SessionSchedule string        `mapstructure:"session_schedule"`
	CacheSchedule   string        `mapstructure:"cache_schedule"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
}

// RateLimitConfig bounds requests per client and route.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window" validate:"gte=0"`
}

// defaults seeds every key so env overrides bind even without a config file.
var defaults = map[string]any{
	"server.port":                  8000,
	"server.log_level":             "info",
	"server.log_format":            "json",
	"server.gin_debug":             false,
	"server.shutdown_timeout":      "15s",
	"server.security.ssl_redirect": false,
	"server.security.hsts_seconds": 31536000,

	"database.driver":                    "sqlite",
	"database.path":                      "./data/adminhub.sqlite",
	"database.pool.max_open_conns":       25,
	"database.pool.max_idle_conns":       5,
	"database.pool.conn_max_lifetime":    "30m",
	"database.pool.slow_query_threshold": "500ms",

	"cache.redis.enabled":    false,
	"cache.redis.address":    "127.0.0.1:6379",
	"cache.redis.username":   "",
	"cache.redis.password":   "",
	"cache.redis.db":         0,
	"cache.redis.tls":        false,
	"cache.redis.timeout":    "5s",
	"cache.redis.key_prefix": cache.DefaultRedisKeyPrefix,

	"monitoring.prometheus.enabled":  true,
	"monitoring.prometheus.endpoint": "/metrics",

	"auth.jwt.issuer":                   "adminhub",
	"auth.jwt.access_token_ttl":         "15m",
	"auth.jwt.leeway":                   "30s",
	"auth.session.refresh_token_ttl":    "720h",
	"auth.session.refresh_token_length": 48,
	"auth.local.lockout_threshold":      5,
	"auth.local.lockout_duration":       "15m",

	"maintenance.enabled":          true,
	"maintenance.session_schedule": "@hourly",
	"maintenance.cache_schedule":   "@every 10m",
	"maintenance.job_timeout":      "2m",

	"ratelimit.enabled":  true,
	"ratelimit.requests": 100,
	"ratelimit.window":   "1m",
}

// LoadConfig reads config.yaml from ./config and paths, layers ADMINHUB_*
// environment variables on top and validates the result.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("ADMINHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations declared in validate tags.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
