package permissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

func TestAuthorizeRejectsMissingPrincipal(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	ok, err := checker.Authorize(context.Background(), nil, ManageUsers)
	require.False(t, ok)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthorizeSuperAdminBypassesPermissions(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	root := createPrincipal(t, db, "root@example.com", models.SuperAdminRole)

	ok, err := checker.Authorize(context.Background(), root, "permission-nobody-defined")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.Authorize(context.Background(), root, "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeResolvesThroughRoles(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	admin := createPrincipal(t, db, "admin@example.com", AdminRole)

	ok, err := checker.Authorize(context.Background(), admin, ManageUsers)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.Authorize(context.Background(), admin, ManageBilling)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = checker.Authorize(context.Background(), admin, "")
	require.NoError(t, err)
	require.True(t, ok, "an empty permission only requires an active principal")
}

func TestAuthorizeWithoutRolesDeniesPermissions(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	plain := createPrincipal(t, db, "plain@example.com")

	ok, err := checker.Authorize(context.Background(), plain, ViewMetrics)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = checker.Authorize(context.Background(), plain, "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAuthorizeDeniesInactiveAndDeletedPrincipals(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	inactive := createPrincipal(t, db, "inactive@example.com", models.SuperAdminRole)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	inactive.IsActive = false

	ok, err := checker.Authorize(context.Background(), inactive, "")
	require.NoError(t, err)
	require.False(t, ok)

	deleted := createPrincipal(t, db, "deleted@example.com", models.SuperAdminRole)
	require.NoError(t, db.Delete(deleted).Error)

	// A stale in-memory copy must not grant access after the row is deleted.
	ok, err = checker.Authorize(context.Background(), deleted, ManageUsers)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeReflectsGraphChangesImmediately(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	admin := createPrincipal(t, db, "admin@example.com", AdminRole)

	ok, err := checker.Authorize(context.Background(), admin, ViewMetrics)
	require.NoError(t, err)
	require.True(t, ok)

	var perm models.Permission
	require.NoError(t, db.Where("name = ?", ViewMetrics).First(&perm).Error)
	require.NoError(t, db.Where("permission_id = ?", perm.ID).Delete(&models.RolePermission{}).Error)

	ok, err = checker.Authorize(context.Background(), admin, ViewMetrics)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionsFor(t *testing.T) {
	db := setupPermissionTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	admin := createPrincipal(t, db, "admin@example.com", AdminRole)
	perms, err := checker.PermissionsFor(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, []string{ManageUsers, ViewMetrics}, perms)

	root := createPrincipal(t, db, "root@example.com", models.SuperAdminRole, AdminRole)
	perms, err = checker.PermissionsFor(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, perms, len(All()))

	isRoot, err := checker.IsSuperAdmin(context.Background(), root)
	require.NoError(t, err)
	require.True(t, isRoot)
}

func TestAuthorizeStoreFailureIsReported(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("connection refused"))

	checker, err := NewChecker(db)
	require.NoError(t, err)

	principal := &models.Principal{ID: uuid.NewString(), IsActive: true}
	ok, err := checker.Authorize(context.Background(), principal, ManageUsers)
	require.False(t, ok)
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncIsIdempotentAndPreservesEdits(t *testing.T) {
	db := setupPermissionTestDB(t)

	var admin models.Role
	require.NoError(t, db.Preload("Permissions").Where("name = ?", AdminRole).First(&admin).Error)
	require.ElementsMatch(t, []string{ManageUsers, ViewMetrics}, admin.PermissionNames())

	require.NoError(t, db.Where("role_id = ?", admin.ID).Delete(&models.RolePermission{}).Error)
	require.NoError(t, Sync(context.Background(), db))

	var edges int64
	require.NoError(t, db.Model(&models.RolePermission{}).Where("role_id = ?", admin.ID).Count(&edges).Error)
	require.Zero(t, edges, "sync must not re-grant permissions to existing roles")

	var permCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.EqualValues(t, len(All()), permCount)
}

func TestRegisterValidatesNames(t *testing.T) {
	require.Error(t, Register(nil))
	require.Error(t, Register(&Definition{Name: "Not A Token"}))
	require.Error(t, Register(&Definition{Name: ManageUsers}))

	require.NoError(t, Register(&Definition{Name: "export-reports", Group: "reports"}))
	t.Cleanup(func() { removePermission("export-reports") })

	def, ok := Get("export-reports")
	require.True(t, ok)
	require.Equal(t, "reports", def.Group)
}

func setupPermissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, models.SetupJoinTables(db))
	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, Sync(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func createPrincipal(t *testing.T, db *gorm.DB, email string, roles ...string) *models.Principal {
	t.Helper()

	principal := &models.Principal{
		Name:     email,
		Email:    email,
		Password: "hashed",
		IsActive: true,
	}
	require.NoError(t, db.Create(principal).Error)

	for _, name := range roles {
		var role models.Role
		require.NoError(t, db.Where("name = ?", name).First(&role).Error)
		require.NoError(t, db.Create(&models.PrincipalRole{
			PrincipalID: principal.ID,
			RoleID:      role.ID,
			CreatedAt:   time.Now(),
		}).Error)
	}
	return principal
}
