// Package cache provides the shared key/value store behind refresh-session
// caching and rate limiting. Redis is used when configured, otherwise the
// cache_entries table.
package cache

import (
	"context"
	"time"
)

// Store is the contract both backends satisfy. Missing keys are reported with
// found=false rather than an error.
type Store interface {
	// IncrementWithTTL bumps a fixed-window counter, returning the count and
	// the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Delete(ctx context.Context, keys ...string) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Store  = (*DatabaseStore)(nil)
	_ Pinger = (*RedisStore)(nil)
	_ Pinger = (*DatabaseStore)(nil)
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
