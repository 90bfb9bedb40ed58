package models

// Permission is a named capability such as "manage-users". Group only clusters
// permissions for display.
type Permission struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Group       string `gorm:"column:group_name;index" json:"group"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
}
