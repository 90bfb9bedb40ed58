// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/database"
)

// Option tunes MustOpenTestDB.
type Option func(*options)

type options struct {
	schema bool
	seed   bool
	onDisk bool
}

// WithAutoMigrate creates every table before the handle is returned.
func WithAutoMigrate() Option {
	return func(o *options) { o.schema = true }
}

// WithSeedData migrates and syncs the permission catalog and system roles.
func WithSeedData() Option {
	return func(o *options) {
		o.schema = true
		o.seed = true
	}
}

// WithFile backs the database with a file under t.TempDir instead of memory,
// which exercises the WAL pragmas and pool limits of the file DSN.
func WithFile() Option {
	return func(o *options) { o.onDisk = true }
}

// MustOpenTestDB opens a private SQLite database and closes it on cleanup.
func MustOpenTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := database.Config{Driver: database.DriverSQLite, DSN: database.MemoryDSN()}
	if o.onDisk {
		cfg = database.Config{
			Driver: database.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "adminhub.sqlite"),
		}
	}

	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	switch {
	case o.seed:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case o.schema:
		require.NoError(t, database.AutoMigrate(db))
	}
	return db
}
