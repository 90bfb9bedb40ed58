package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/database"
	"github.com/charlesng35/adminhub/internal/database/testutil"
	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
)

type testServices struct {
	db          *gorm.DB
	audit       *AuditService
	principals  *PrincipalService
	roles       *RoleService
	permissions *PermissionService
	hasher      crypto.Hasher
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	hasher := crypto.NewBcryptHasher(bcrypt.MinCost)

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	principals, err := NewPrincipalService(db, audit, hasher)
	require.NoError(t, err)
	roles, err := NewRoleService(db, audit)
	require.NoError(t, err)
	perms, err := NewPermissionService(db, audit)
	require.NoError(t, err)

	return &testServices{
		db:          db,
		audit:       audit,
		principals:  principals,
		roles:       roles,
		permissions: perms,
		hasher:      hasher,
	}
}

// seedPrincipal inserts an active principal directly, bypassing audit.
func (ts *testServices) seedPrincipal(t *testing.T, name, email string, roles ...string) *models.Principal {
	t.Helper()

	hashed, err := ts.hasher.Hash("password123")
	require.NoError(t, err)

	principal := &models.Principal{Name: name, Email: email, Password: hashed, IsActive: true}
	require.NoError(t, ts.db.Create(principal).Error)

	for _, roleName := range roles {
		var role models.Role
		require.NoError(t, ts.db.First(&role, "name = ?", roleName).Error)
		require.NoError(t, ts.db.Create(&models.PrincipalRole{PrincipalID: principal.ID, RoleID: role.ID}).Error)
	}
	return principal
}

func (ts *testServices) actor(t *testing.T) Actor {
	t.Helper()
	root := ts.seedPrincipal(t, "Root", "root@example.com", models.SuperAdminRole)
	return Actor{PrincipalID: root.ID, Origin: Origin{IPAddress: "10.0.0.1", UserAgent: "go-test"}}
}

func (ts *testServices) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, ts.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

// closedAuditService returns an AuditService whose store is already closed.
func closedAuditService(t *testing.T) *AuditService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	require.NoError(t, database.Close(db))
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	return audit
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func bg() context.Context { return context.Background() }
