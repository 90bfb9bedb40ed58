package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus is the refresh-ability of a session at a point in time.
type SessionStatus int

const (
	SessionActive SessionStatus = iota
	SessionRevoked
	SessionExpired
)

// Session is a refresh-token session issued to a principal at login. Only the
// SHA-256 digest of the refresh token is stored.
type Session struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	PrincipalID string     `gorm:"type:uuid;not null;index" json:"principal_id"`
	RefreshHash string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IPAddress   string     `json:"ip_address"`
	UserAgent   string     `json:"user_agent"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt  time.Time  `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `gorm:"index" json:"revoked_at"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Status reports whether the session is usable at now. Revocation wins over expiry.
func (s *Session) Status(now time.Time) SessionStatus {
	switch {
	case s.RevokedAt != nil:
		return SessionRevoked
	case !now.Before(s.ExpiresAt):
		return SessionExpired
	default:
		return SessionActive
	}
}

// Active reports whether the session can still be refreshed at now.
func (s *Session) Active(now time.Time) bool {
	return s.Status(now) == SessionActive
}
