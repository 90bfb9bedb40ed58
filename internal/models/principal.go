package models

import (
	"time"

	"gorm.io/gorm"
)

// PrincipalStatus describes the lifecycle state of an administrative account.
type PrincipalStatus string

const (
	PrincipalActive   PrincipalStatus = "active"
	PrincipalInactive PrincipalStatus = "inactive"
	PrincipalDeleted  PrincipalStatus = "deleted"
)

// Principal is an administrative account that can authenticate and act.
type Principal struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Avatar   string `json:"avatar,omitempty"`

	IsActive bool `gorm:"not null" json:"is_active"`

	Roles []Role `gorm:"many2many:principal_roles;" json:"roles,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip,omitempty"`

	FailedAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (p *Principal) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Status derives the lifecycle state. Deleted wins over inactive.
func (p *Principal) Status() PrincipalStatus {
	switch {
	case p == nil || p.DeletedAt.Valid:
		return PrincipalDeleted
	case !p.IsActive:
		return PrincipalInactive
	default:
		return PrincipalActive
	}
}

// CanAct reports whether the principal may authenticate and be authorized.
func (p *Principal) CanAct() bool {
	return p.Status() == PrincipalActive
}

// HasRole reports whether a preloaded role list contains name.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	for _, role := range p.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}
