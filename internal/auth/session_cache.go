package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/internal/models"
)

const sessionCacheKeyPrefix = "auth:session:"

var errSessionCacheMiss = errors.New("session cache miss")

// SessionCache keeps hot session rows keyed by refresh-token digest so
// refreshes can skip the database lookup.
type SessionCache interface {
	Get(ctx context.Context, digest string) (*models.Session, error)
	Set(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, digest string) error
}

// NewSessionCache adapts a cache.Store (Redis or database) into a SessionCache.
func NewSessionCache(store cache.Store) SessionCache {
	if store == nil {
		return nil
	}
	return &storeSessionCache{store: store}
}

type storeSessionCache struct {
	store cache.Store
}

// cachedSession is the subset of a session needed to validate a refresh.
type cachedSession struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	IPAddress   string     `json:"ip,omitempty"`
	UserAgent   string     `json:"ua,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUsedAt  time.Time  `json:"last_used_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func (c *storeSessionCache) Get(ctx context.Context, digest string) (*models.Session, error) {
	if digest == "" {
		return nil, errSessionCacheMiss
	}

	raw, found, err := c.store.Get(ctx, sessionCacheKey(digest))
	switch {
	case err != nil:
		return nil, err
	case !found:
		return nil, errSessionCacheMiss
	}

	var entry cachedSession
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}

	return &models.Session{
		ID:          entry.ID,
		PrincipalID: entry.PrincipalID,
		RefreshHash: digest,
		IPAddress:   entry.IPAddress,
		UserAgent:   entry.UserAgent,
		ExpiresAt:   entry.ExpiresAt,
		LastUsedAt:  entry.LastUsedAt,
		CreatedAt:   entry.CreatedAt,
		RevokedAt:   entry.RevokedAt,
	}, nil
}

func (c *storeSessionCache) Set(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if session == nil {
		return errors.New("session cache: session is nil")
	}
	if session.RefreshHash == "" {
		return errors.New("session cache: refresh digest missing")
	}

	payload, err := json.Marshal(cachedSession{
		ID:          session.ID,
		PrincipalID: session.PrincipalID,
		IPAddress:   session.IPAddress,
		UserAgent:   session.UserAgent,
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
		LastUsedAt:  session.LastUsedAt,
		RevokedAt:   session.RevokedAt,
	})
	if err != nil {
		return fmt.Errorf("session cache: encode: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.store.Set(ctx, sessionCacheKey(session.RefreshHash), payload, ttl)
}

func (c *storeSessionCache) Delete(ctx context.Context, digest string) error {
	if digest == "" {
		return nil
	}
	return c.store.Delete(ctx, sessionCacheKey(digest))
}

func sessionCacheKey(digest string) string {
	return sessionCacheKeyPrefix + digest
}
