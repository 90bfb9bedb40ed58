package models

// SuperAdminRole is the role that bypasses permission resolution.
const SuperAdminRole = "super-admin"

// Role groups permissions under a machine name such as "admin".
type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Principals  []Principal  `gorm:"many2many:principal_roles;" json:"principals,omitempty"`
}

// PermissionNames returns the names of the preloaded permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, perm := range r.Permissions {
		names = append(names, perm.Name)
	}
	return names
}
