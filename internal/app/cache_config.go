package app

import (
	"strings"

	"github.com/charlesng35/adminhub/internal/cache"
)

// UsesRedis reports whether Redis should back the shared cache. Without it the
// database cache table serves sessions and rate limits.
func (c CacheConfig) UsesRedis() bool {
	return c.Redis.Enabled && strings.TrimSpace(c.Redis.Address) != ""
}

// RedisClientConfig maps the redis section onto cache.RedisConfig.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:   strings.TrimSpace(r.Address),
		Username:  strings.TrimSpace(r.Username),
		Password:  r.Password,
		DB:        r.DB,
		TLS:       r.TLS,
		Timeout:   r.Timeout,
		KeyPrefix: strings.TrimSpace(r.KeyPrefix),
	}
}
