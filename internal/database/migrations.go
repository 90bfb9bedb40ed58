package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/internal/permissions"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := models.SetupJoinTables(db); err != nil {
		return err
	}
	return db.AutoMigrate(models.All()...)
}

// SeedData inserts the default permission catalog and system roles.
func SeedData(db *gorm.DB) error {
	return permissions.Sync(context.Background(), db)
}
