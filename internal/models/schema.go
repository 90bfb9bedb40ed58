package models

import (
	"fmt"

	"gorm.io/gorm"
)

// SetupJoinTables registers the edge models as custom join tables so the
// many2many associations carry their own timestamps.
func SetupJoinTables(db *gorm.DB) error {
	joins := []struct {
		model any
		field string
		join  any
	}{
		{&Principal{}, "Roles", &PrincipalRole{}},
		{&Role{}, "Principals", &PrincipalRole{}},
		{&Role{}, "Permissions", &RolePermission{}},
		{&Permission{}, "Roles", &RolePermission{}},
	}

	for _, j := range joins {
		if err := db.SetupJoinTable(j.model, j.field, j.join); err != nil {
			return fmt.Errorf("setup join table %T.%s: %w", j.model, j.field, err)
		}
	}
	return nil
}

// All lists every persistent model in migration order.
func All() []any {
	return []any{
		&Principal{},
		&Role{},
		&Permission{},
		&PrincipalRole{},
		&RolePermission{},
		&AuditLog{},
		&Session{},
		&CacheEntry{},
	}
}
