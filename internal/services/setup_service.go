package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/adminhub/internal/models"
)

// SetupService bootstraps the first super-admin on a fresh installation.
type SetupService struct {
	db         *gorm.DB
	principals *PrincipalService
	audit      *AuditService
}

// NewSetupService constructs a SetupService.
func NewSetupService(db *gorm.DB, principals *PrincipalService, audit *AuditService) (*SetupService, error) {
	if db == nil {
		return nil, errors.New("setup service: db is required")
	}
	if principals == nil {
		return nil, errors.New("setup service: principal service is required")
	}
	return &SetupService{db: db, principals: principals, audit: audit}, nil
}

// Initialized reports whether any principal was ever created, deleted ones included.
func (s *SetupService) Initialized(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Unscoped().Model(&models.Principal{}).Count(&count).Error; err != nil {
		return false, storeFailure("setup service: status", err)
	}
	return count > 0, nil
}

// Initialize creates the first principal holding the super-admin role. It
// fails with ErrSetupCompleted once any principal exists. The role row is
// locked for the transaction so concurrent calls cannot both succeed.
func (s *SetupService) Initialize(ctx context.Context, input CreatePrincipalInput, origin Origin) (*models.Principal, error) {
	ctx = ensureContext(ctx)

	var principal *models.Principal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The super-admin role row serialises concurrent initialisations.
		var role models.Role
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&role, "name = ?", models.SuperAdminRole).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}

		var count int64
		if err := tx.Unscoped().Model(&models.Principal{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSetupCompleted
		}

		active := true
		input.IsActive = &active
		input.RoleIDs = []string{role.ID}

		created, err := s.principals.create(ctx, tx, input)
		if err != nil {
			return err
		}
		principal = created
		return nil
	})
	if err != nil {
		return nil, wrapGraphWriteError("setup service: initialize", "email has already been taken", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  principal.ID,
		Action:       ActionBootstrap,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Initialized installation with super admin: " + principal.Name,
		Origin:       origin,
	})
	return principal, nil
}
