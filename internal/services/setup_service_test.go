package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

func TestSetupServiceInitialize(t *testing.T) {
	ts := newTestServices(t)
	setup, err := NewSetupService(ts.db, ts.principals, ts.audit)
	require.NoError(t, err)

	done, err := setup.Initialized(bg())
	require.NoError(t, err)
	require.False(t, done)

	origin := Origin{IPAddress: "192.0.2.10", UserAgent: "installer"}
	principal, err := setup.Initialize(bg(), CreatePrincipalInput{
		Name:     "Owner",
		Email:    "owner@example.com",
		Password: "s3cretpass",
		IsActive: boolPtr(false),
	}, origin)
	require.NoError(t, err)
	require.True(t, principal.IsActive)
	require.True(t, principal.HasRole(models.SuperAdminRole))

	done, err = setup.Initialized(bg())
	require.NoError(t, err)
	require.True(t, done)

	logs, err := ts.audit.ForPrincipal(bg(), principal.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, ActionBootstrap, logs[0].Action)
	require.Equal(t, "192.0.2.10", logs[0].IPAddress)

	_, err = setup.Initialize(bg(), CreatePrincipalInput{
		Name: "Second", Email: "second@example.com", Password: "s3cretpass",
	}, origin)
	require.ErrorIs(t, err, ErrSetupCompleted)
}

func TestSetupServiceStaysCompletedAfterDeletion(t *testing.T) {
	ts := newTestServices(t)
	actor := ts.actor(t)
	target := ts.seedPrincipal(t, "Target", "target@example.com")
	require.NoError(t, ts.principals.Delete(bg(), actor, target.ID))

	setup, err := NewSetupService(ts.db, ts.principals, ts.audit)
	require.NoError(t, err)

	done, err := setup.Initialized(bg())
	require.NoError(t, err)
	require.True(t, done)
}

func newMockSetupService(t *testing.T) (*SetupService, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	principals, err := NewPrincipalService(db, audit, nil)
	require.NoError(t, err)
	setup, err := NewSetupService(db, principals, audit)
	require.NoError(t, err)
	return setup, mock
}

func TestSetupServiceInitializeLocksRoleBeforeCounting(t *testing.T) {
	setup, mock := newMockSetupService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "roles" .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("role-1", models.SuperAdminRole))
	mock.ExpectQuery(`SELECT count\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := setup.Initialize(bg(), CreatePrincipalInput{
		Name: "Late", Email: "late@example.com", Password: "s3cretpass",
	}, Origin{})
	require.ErrorIs(t, err, ErrSetupCompleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetupServiceInitializeLockFailure(t *testing.T) {
	setup, mock := newMockSetupService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := setup.Initialize(bg(), CreatePrincipalInput{
		Name: "Owner", Email: "owner@example.com", Password: "s3cretpass",
	}, Origin{})
	require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
