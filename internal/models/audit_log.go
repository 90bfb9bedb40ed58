package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned when anything tries to change a stored audit record.
var ErrAuditImmutable = errors.New("audit log records are append-only")

// AuditLog is an append-only record of an administrative action.
type AuditLog struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	PrincipalID  string         `gorm:"type:uuid;not null;index:idx_audit_principal_created,priority:1" json:"principal_id"`
	Action       string         `gorm:"not null;index" json:"action"`
	ResourceType string         `gorm:"not null;index:idx_audit_resource,priority:1" json:"resource_type"`
	ResourceID   *string        `gorm:"index:idx_audit_resource,priority:2" json:"resource_id"`
	Description  string         `json:"description"`
	Properties   datatypes.JSON `json:"properties,omitempty"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	CreatedAt    time.Time      `gorm:"index;index:idx_audit_principal_created,priority:2" json:"created_at"`

	// Principal is resolved separately so soft-deleted principals still display.
	Principal *PrincipalSummary `gorm:"-" json:"principal,omitempty"`
}

// PrincipalSummary is the display subset of a principal attached to audit records.
type PrincipalSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Deleted bool   `json:"deleted,omitempty"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
