package permissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/adminhub/internal/models"
)

// Sync inserts catalog permissions and roles missing from the database. Existing
// rows are left untouched so edits made through the API survive restarts. Grants
// are only written for roles created by this call.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("permission: db is required")
	}
	ctx = ensureContext(ctx)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]string)
		for _, def := range All() {
			record := models.Permission{
				Name:        def.Name,
				DisplayName: def.DisplayName,
				Description: def.Description,
				Group:       def.Group,
			}
			if err := tx.Where(models.Permission{Name: def.Name}).Attrs(record).FirstOrCreate(&record).Error; err != nil {
				return fmt.Errorf("permission: sync %s: %w", def.Name, err)
			}
			byName[def.Name] = record.ID
		}

		for _, def := range Roles() {
			var existing int64
			if err := tx.Model(&models.Role{}).Where("name = ?", def.Name).Count(&existing).Error; err != nil {
				return fmt.Errorf("permission: lookup role %s: %w", def.Name, err)
			}
			if existing > 0 {
				continue
			}

			role := models.Role{
				Name:        def.Name,
				DisplayName: def.DisplayName,
				Description: def.Description,
				IsSystem:    def.System,
			}
			if err := tx.Create(&role).Error; err != nil {
				return fmt.Errorf("permission: create role %s: %w", def.Name, err)
			}

			names := def.Permissions
			if def.AllPermissions {
				names = names[:0:0]
				for name := range byName {
					names = append(names, name)
				}
			}

			edges := make([]models.RolePermission, 0, len(names))
			for _, name := range names {
				id, ok := byName[name]
				if !ok {
					continue
				}
				edges = append(edges, models.RolePermission{RoleID: role.ID, PermissionID: id})
			}
			if len(edges) == 0 {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error; err != nil {
				return fmt.Errorf("permission: grant role %s: %w", def.Name, err)
			}
		}
		return nil
	})
}
