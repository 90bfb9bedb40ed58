package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/logger"
)

func TestPrincipalServiceCreate(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)

	admin, err := ts.roles.GetByName(bg(), "admin")
	require.NoError(t, err)

	principal, err := ts.principals.Create(bg(), actor, CreatePrincipalInput{
		Name:     "  Jane Doe ",
		Email:    "Jane@Example.com",
		Password: "s3cretpass",
		RoleIDs:  []string{admin.ID},
	})
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", principal.Name)
	require.Equal(t, "jane@example.com", principal.Email)
	require.True(t, principal.IsActive)
	require.NotEqual(t, "s3cretpass", principal.Password)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(principal.Password), []byte("s3cretpass")))
	require.True(t, principal.HasRole("admin"))

	logs, err := ts.audit.ForResource(bg(), ResourcePrincipal, principal.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, ActionCreate, logs[0].Action)
	require.Equal(t, actor.PrincipalID, logs[0].PrincipalID)
	require.Equal(t, "10.0.0.1", logs[0].IPAddress)
}

func TestPrincipalServiceCreateInactive(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)

	principal, err := ts.principals.Create(bg(), actor, CreatePrincipalInput{
		Name: "Dormant", Email: "dormant@example.com", Password: "s3cretpass", IsActive: boolPtr(false),
	})
	require.NoError(t, err)

	stored, err := ts.principals.Get(bg(), principal.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.Equal(t, models.PrincipalInactive, stored.Status())
}

func TestPrincipalServiceCreateValidation(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)

	_, err := ts.principals.Create(bg(), actor, CreatePrincipalInput{Name: "Short", Email: "short@example.com", Password: "abc"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ts.principals.Create(bg(), actor, CreatePrincipalInput{Name: "Bad", Email: "not-an-email", Password: "s3cretpass"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ts.principals.Create(bg(), actor, CreatePrincipalInput{
		Name: "Ghost", Email: "ghost@example.com", Password: "s3cretpass", RoleIDs: []string{"missing-role"},
	})
	require.ErrorIs(t, err, ErrRoleNotFound)

	_, err = ts.principals.Create(bg(), Actor{}, CreatePrincipalInput{Name: "Anon", Email: "anon@example.com", Password: "s3cretpass"})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.Zero(t, ts.auditCount(t, ActionCreate))
}

func TestPrincipalServiceEmailUniqueness(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	ts.seedPrincipal(t, "Jane", "jane@example.com")
	gone := ts.seedPrincipal(t, "Gone", "gone@example.com")
	require.NoError(t, ts.principals.Delete(bg(), actor, gone.ID))

	_, err := ts.principals.Create(bg(), actor, CreatePrincipalInput{Name: "Dup", Email: "JANE@example.com", Password: "s3cretpass"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ts.principals.Create(bg(), actor, CreatePrincipalInput{Name: "Dup", Email: "gone@example.com", Password: "s3cretpass"})
	require.ErrorIs(t, err, apperrors.ErrValidation, "soft-deleted emails stay reserved")

	other := ts.seedPrincipal(t, "Other", "other@example.com")
	_, err = ts.principals.Update(bg(), actor, other.ID, UpdatePrincipalInput{Email: strPtr("Jane@Example.com")})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ts.principals.Update(bg(), actor, other.ID, UpdatePrincipalInput{Email: strPtr("GONE@example.com")})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := ts.principals.Update(bg(), actor, other.ID, UpdatePrincipalInput{Email: strPtr("OTHER@example.com")})
	require.NoError(t, err)
	require.Equal(t, "other@example.com", updated.Email)
}

func TestPrincipalServiceUpdate(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com")

	updated, err := ts.principals.Update(bg(), actor, target.ID, UpdatePrincipalInput{
		Name:     strPtr("Renamed"),
		Password: strPtr("newpassword"),
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("newpassword")))
	require.EqualValues(t, 1, ts.auditCount(t, ActionUpdate))

	_, err = ts.principals.Update(bg(), actor, target.ID, UpdatePrincipalInput{Name: strPtr("Renamed")})
	require.NoError(t, err)
	require.EqualValues(t, 1, ts.auditCount(t, ActionUpdate), "no-op update is not audited")

	_, err = ts.principals.Update(bg(), actor, "missing", UpdatePrincipalInput{Name: strPtr("x")})
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestPrincipalServiceSetActive(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com")

	principal, err := ts.principals.SetActive(bg(), actor, target.ID, false)
	require.NoError(t, err)
	require.False(t, principal.IsActive)
	require.EqualValues(t, 1, ts.auditCount(t, ActionDeactivate))

	_, err = ts.principals.SetActive(bg(), actor, target.ID, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, ts.auditCount(t, ActionDeactivate))

	_, err = ts.principals.SetActive(bg(), actor, target.ID, true)
	require.NoError(t, err)
	require.EqualValues(t, 1, ts.auditCount(t, ActionActivate))
}

func TestPrincipalServiceResetCredential(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com")
	require.NoError(t, ts.db.Model(target).Update("failed_attempts", 4).Error)

	require.ErrorIs(t, ts.principals.ResetCredential(bg(), actor, target.ID, "short"), apperrors.ErrValidation)
	require.NoError(t, ts.principals.ResetCredential(bg(), actor, target.ID, "brand-new-pass"))

	stored, err := ts.principals.Get(bg(), target.ID)
	require.NoError(t, err)
	require.Zero(t, stored.FailedAttempts)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("brand-new-pass")))
	require.EqualValues(t, 1, ts.auditCount(t, ActionResetCredential))
}

func TestPrincipalServiceDeleteSelfIsRejected(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)

	err := ts.principals.Delete(bg(), actor, actor.PrincipalID)
	require.ErrorIs(t, err, ErrCannotDeleteSelf)

	stored, err := ts.principals.Get(bg(), actor.PrincipalID)
	require.NoError(t, err)
	require.True(t, stored.HasRole(models.SuperAdminRole))
	require.Zero(t, ts.auditCount(t, ActionDelete))
}

func TestPrincipalServiceDeleteHidesPrincipal(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com", "admin")

	_, err := ts.audit.Record(bg(), AuditEntry{PrincipalID: target.ID, Action: ActionLogin, ResourceType: ResourceAuth})
	require.NoError(t, err)

	require.NoError(t, ts.principals.Delete(bg(), actor, target.ID))

	_, err = ts.principals.Get(bg(), target.ID)
	require.ErrorIs(t, err, ErrPrincipalNotFound)

	list, total, err := ts.principals.List(bg(), ListPrincipalsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, actor.PrincipalID, list[0].ID)

	var edges int64
	require.NoError(t, ts.db.Model(&models.PrincipalRole{}).Where("principal_id = ?", target.ID).Count(&edges).Error)
	require.Zero(t, edges)

	logs, err := ts.audit.ForPrincipal(bg(), target.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "Target", logs[0].Principal.Name)

	require.ErrorIs(t, ts.principals.Delete(bg(), actor, target.ID), ErrPrincipalNotFound)
}

func TestPrincipalServiceListFilters(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	ts.seedPrincipal(t, "Alice", "alice@example.com")
	bob := ts.seedPrincipal(t, "Bob", "bob@corp.test")
	_, err := ts.principals.SetActive(bg(), actor, bob.ID, false)
	require.NoError(t, err)

	_, total, err := ts.principals.List(bg(), ListPrincipalsOptions{Filters: PrincipalFilters{Query: "EXAMPLE.com"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	inactive, _, err := ts.principals.List(bg(), ListPrincipalsOptions{Filters: PrincipalFilters{Status: "inactive"}})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	require.Equal(t, bob.ID, inactive[0].ID)

	_, _, err = ts.principals.List(bg(), ListPrincipalsOptions{Filters: PrincipalFilters{Status: "deleted"}})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	page, total, err := ts.principals.List(bg(), ListPrincipalsOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, page, 1)

	active, err := ts.principals.Count(bg(), true)
	require.NoError(t, err)
	require.EqualValues(t, 2, active)
}

func TestPrincipalServiceSetRoles(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com", "admin")

	super, err := ts.roles.GetByName(bg(), models.SuperAdminRole)
	require.NoError(t, err)

	updated, err := ts.principals.SetRoles(bg(), actor, target.ID, []string{super.ID})
	require.NoError(t, err)
	require.True(t, updated.HasRole(models.SuperAdminRole))
	require.False(t, updated.HasRole("admin"))
	require.EqualValues(t, 1, ts.auditCount(t, ActionSyncRoles))

	_, err = ts.principals.SetRoles(bg(), actor, target.ID, []string{super.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, ts.auditCount(t, ActionSyncRoles))

	_, err = ts.principals.SetRoles(bg(), actor, target.ID, []string{"missing"})
	require.ErrorIs(t, err, ErrRoleNotFound)

	stored, err := ts.principals.Get(bg(), target.ID)
	require.NoError(t, err)
	require.True(t, stored.HasRole(models.SuperAdminRole), "failed sync leaves assignments untouched")
}

func TestPrincipalServiceAuditFailureDoesNotFailMutation(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)

	core, observed := observer.New(zapcore.WarnLevel)
	restore := logger.Replace(zap.New(core))
	t.Cleanup(restore)

	principals, err := NewPrincipalService(ts.db, closedAuditService(t), ts.hasher)
	require.NoError(t, err)

	principal, err := principals.Create(bg(), actor, CreatePrincipalInput{
		Name: "Resilient", Email: "resilient@example.com", Password: "s3cretpass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, principal.ID)

	_, err = ts.principals.Get(bg(), principal.ID)
	require.NoError(t, err)

	entries := observed.FilterMessage("audit record dropped").All()
	require.Len(t, entries, 1)
	require.Equal(t, ActionCreate, entries[0].ContextMap()["action"])
}

func TestPrincipalServiceStoreUnavailable(t *testing.T) {
	ts := newTestServices(t)
	sqlDB, err := ts.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = ts.principals.Get(bg(), "any")
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	_, _, err = ts.principals.List(bg(), ListPrincipalsOptions{})
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
