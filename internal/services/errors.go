package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

var (
	// ErrPrincipalNotFound indicates the requested admin user does not exist or was deleted.
	ErrPrincipalNotFound = apperrors.NewNotFound("PRINCIPAL_NOT_FOUND", "Admin user not found")
	// ErrRoleNotFound indicates no role matches the supplied id or name.
	ErrRoleNotFound = apperrors.NewNotFound("ROLE_NOT_FOUND", "Role not found")
	// ErrPermissionNotFound indicates no permission matches the supplied id or name.
	ErrPermissionNotFound = apperrors.NewNotFound("PERMISSION_NOT_FOUND", "Permission not found")
	// ErrAuditRecordNotFound indicates the requested audit record does not exist.
	ErrAuditRecordNotFound = apperrors.NewNotFound("AUDIT_RECORD_NOT_FOUND", "Audit record not found")
	// ErrRoleImmutable guards seeded system roles against rename and deletion.
	ErrRoleImmutable = apperrors.New("ROLE_IMMUTABLE", "System roles cannot be renamed or deleted", http.StatusConflict)
	// ErrSetupCompleted is returned when bootstrapping an already initialised installation.
	ErrSetupCompleted = apperrors.New("SETUP_COMPLETED", "Setup has already been completed", http.StatusConflict)
	// ErrCannotDeleteSelf is re-exported for callers that only import services.
	ErrCannotDeleteSelf = apperrors.ErrCannotDeleteSelf
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
