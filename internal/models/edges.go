package models

import "time"

// RolePermission is the join row granting a permission to a role.
type RolePermission struct {
	RoleID       string    `gorm:"primaryKey;type:uuid" json:"role_id"`
	PermissionID string    `gorm:"primaryKey;type:uuid;index" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PrincipalRole is the join row assigning a role to a principal.
type PrincipalRole struct {
	PrincipalID string    `gorm:"primaryKey;type:uuid" json:"principal_id"`
	RoleID      string    `gorm:"primaryKey;type:uuid;index" json:"role_id"`
	CreatedAt   time.Time `json:"created_at"`
}
