package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

// CreateRoleInput describes the payload accepted by RoleService.Create.
type CreateRoleInput struct {
	Name          string   `json:"name" validate:"required,max=100,token"`
	DisplayName   string   `json:"display_name" validate:"max=255"`
	Description   string   `json:"description" validate:"max=1000"`
	PermissionIDs []string `json:"permission_ids" validate:"omitempty,dive,required"`
}

// UpdateRoleInput describes mutable fields on a role.
type UpdateRoleInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100,token"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// RoleService manages roles and the role/permission and principal/role edges.
type RoleService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewRoleService constructs a RoleService using the provided database handle.
func NewRoleService(db *gorm.DB, audit *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	return &RoleService{db: db, audit: audit}, nil
}

// List returns every role with its permissions, ordered by name.
func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	if err := s.db.WithContext(ctx).
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("permissions.name") }).
		Order("name").
		Find(&roles).Error; err != nil {
		return nil, storeFailure("role service: list", err)
	}
	return roles, nil
}

// Get loads a role by id with its permissions.
func (s *RoleService) Get(ctx context.Context, id string) (*models.Role, error) {
	return s.findRole(ctx, s.db.WithContext(ensureContext(ctx)), "id = ?", strings.TrimSpace(id))
}

// GetByName loads a role by its machine name.
func (s *RoleService) GetByName(ctx context.Context, name string) (*models.Role, error) {
	return s.findRole(ctx, s.db.WithContext(ensureContext(ctx)), "name = ?", strings.TrimSpace(name))
}

// Create registers a new role with an optional initial permission set.
func (s *RoleService) Create(ctx context.Context, actor Actor, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        input.Name,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Description: strings.TrimSpace(input.Description),
	}
	if role.DisplayName == "" {
		role.DisplayName = role.Name
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms, err := loadPermissionsByID(tx, normaliseIDs(input.PermissionIDs))
		if err != nil {
			return err
		}
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		if err := insertRolePermissions(tx, role.ID, perms); err != nil {
			return err
		}
		role.Permissions = perms
		return nil
	})
	if err != nil {
		return nil, wrapGraphWriteError("role service: create", "role name has already been taken", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionCreate,
		ResourceType: ResourceRole,
		ResourceID:   role.ID,
		Description:  "Created role: " + role.Name,
		Properties:   map[string]any{"permissions": role.PermissionNames()},
		Origin:       actor.Origin,
	})
	return role, nil
}

// Update modifies role metadata. System roles keep their name.
func (s *RoleService) Update(ctx context.Context, actor Actor, id string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil && *input.Name != role.Name {
		if role.IsSystem {
			return nil, ErrRoleImmutable
		}
		updates["name"] = *input.Name
	}
	if input.DisplayName != nil {
		if v := strings.TrimSpace(*input.DisplayName); v != role.DisplayName {
			updates["display_name"] = v
		}
	}
	if input.Description != nil {
		if v := strings.TrimSpace(*input.Description); v != role.Description {
			updates["description"] = v
		}
	}
	if len(updates) == 0 {
		return role, nil
	}

	if err := s.db.WithContext(ctx).Model(role).Updates(updates).Error; err != nil {
		return nil, wrapGraphWriteError("role service: update", "role name has already been taken", err)
	}

	updated, err := s.Get(ctx, role.ID)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(updates))
	for _, key := range []string{"name", "display_name", "description"} {
		if _, ok := updates[key]; ok {
			fields = append(fields, key)
		}
	}
	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionUpdate,
		ResourceType: ResourceRole,
		ResourceID:   updated.ID,
		Description:  "Updated role: " + updated.Name,
		Properties:   map[string]any{"fields": fields},
		Origin:       actor.Origin,
	})
	return updated, nil
}

// Delete removes a role together with its permission grants and assignments.
func (s *RoleService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return err
	}

	var role models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&role, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			return err
		}
		if role.IsSystem {
			return ErrRoleImmutable
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.PrincipalRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
	if err != nil {
		return wrapGraphReadError("role service: delete", ErrRoleNotFound, err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionDelete,
		ResourceType: ResourceRole,
		ResourceID:   role.ID,
		Description:  "Deleted role: " + role.Name,
		Origin:       actor.Origin,
	})
	return nil
}

// SetPermissions replaces the role's permission set with permissionIDs.
func (s *RoleService) SetPermissions(ctx context.Context, actor Actor, id string, permissionIDs []string) (*models.Role, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	current := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		current = append(current, perm.ID)
	}
	added, removed := diffIDs(current, normaliseIDs(permissionIDs))
	if len(added) == 0 && len(removed) == 0 {
		return role, nil
	}

	var addedPerms []models.Permission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms, err := loadPermissionsByID(tx, added)
		if err != nil {
			return err
		}
		addedPerms = perms
		if len(removed) > 0 {
			if err := tx.Where("role_id = ? AND permission_id IN ?", role.ID, removed).
				Delete(&models.RolePermission{}).Error; err != nil {
				return err
			}
		}
		return insertRolePermissions(tx, role.ID, perms)
	})
	if err != nil {
		return nil, wrapGraphWriteError("role service: set permissions", "", err)
	}

	removedNames := make([]string, 0, len(removed))
	for _, perm := range role.Permissions {
		for _, pid := range removed {
			if perm.ID == pid {
				removedNames = append(removedNames, perm.Name)
			}
		}
	}
	addedNames := make([]string, 0, len(addedPerms))
	for _, perm := range addedPerms {
		addedNames = append(addedNames, perm.Name)
	}

	updated, err := s.Get(ctx, role.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionSyncPermissions,
		ResourceType: ResourceRole,
		ResourceID:   updated.ID,
		Description:  "Updated permissions for role: " + updated.Name,
		Properties:   map[string]any{"added": addedNames, "removed": removedNames},
		Origin:       actor.Origin,
	})
	return updated, nil
}

// GrantPermission adds permissionName to roleName. Granting an existing edge
// is a no-op that reports changed=false and writes no audit record.
func (s *RoleService) GrantPermission(ctx context.Context, actor Actor, roleName, permissionName string) (bool, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	role, err := s.findRole(ctx, db, "name = ?", strings.TrimSpace(roleName))
	if err != nil {
		return false, err
	}
	perm, err := findPermission(db, "name = ?", strings.TrimSpace(permissionName))
	if err != nil {
		return false, err
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RolePermission{RoleID: role.ID, PermissionID: perm.ID})
	if result.Error != nil {
		return false, storeFailure("role service: grant permission", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionGrantPermission,
		ResourceType: ResourceRole,
		ResourceID:   role.ID,
		Description:  "Granted permission " + perm.Name + " to role: " + role.Name,
		Properties:   map[string]any{"permission": perm.Name},
		Origin:       actor.Origin,
	})
	return true, nil
}

// RevokePermission removes permissionName from roleName. Revoking a missing
// edge is a no-op that reports changed=false.
func (s *RoleService) RevokePermission(ctx context.Context, actor Actor, roleName, permissionName string) (bool, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	role, err := s.findRole(ctx, db, "name = ?", strings.TrimSpace(roleName))
	if err != nil {
		return false, err
	}
	perm, err := findPermission(db, "name = ?", strings.TrimSpace(permissionName))
	if err != nil {
		return false, err
	}

	result := db.Where("role_id = ? AND permission_id = ?", role.ID, perm.ID).Delete(&models.RolePermission{})
	if result.Error != nil {
		return false, storeFailure("role service: revoke permission", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionRevokePermission,
		ResourceType: ResourceRole,
		ResourceID:   role.ID,
		Description:  "Revoked permission " + perm.Name + " from role: " + role.Name,
		Properties:   map[string]any{"permission": perm.Name},
		Origin:       actor.Origin,
	})
	return true, nil
}

// AssignRole gives roleName to the principal. Re-assigning is a no-op.
func (s *RoleService) AssignRole(ctx context.Context, actor Actor, principalID, roleName string) (bool, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	principal, role, err := s.principalAndRole(ctx, db, principalID, roleName)
	if err != nil {
		return false, err
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PrincipalRole{PrincipalID: principal.ID, RoleID: role.ID})
	if result.Error != nil {
		return false, storeFailure("role service: assign role", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionAssignRole,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Assigned role " + role.Name + " to admin user: " + principal.Name,
		Properties:   map[string]any{"role": role.Name},
		Origin:       actor.Origin,
	})
	return true, nil
}

// UnassignRole removes roleName from the principal. Removing an absent role is a no-op.
func (s *RoleService) UnassignRole(ctx context.Context, actor Actor, principalID, roleName string) (bool, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return false, err
	}

	db := s.db.WithContext(ctx)
	principal, role, err := s.principalAndRole(ctx, db, principalID, roleName)
	if err != nil {
		return false, err
	}

	result := db.Where("principal_id = ? AND role_id = ?", principal.ID, role.ID).Delete(&models.PrincipalRole{})
	if result.Error != nil {
		return false, storeFailure("role service: unassign role", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionUnassignRole,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Removed role " + role.Name + " from admin user: " + principal.Name,
		Properties:   map[string]any{"role": role.Name},
		Origin:       actor.Origin,
	})
	return true, nil
}

// Count returns the number of roles.
func (s *RoleService) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Role{}).Count(&total).Error; err != nil {
		return 0, storeFailure("role service: count", err)
	}
	return total, nil
}

func (s *RoleService) principalAndRole(ctx context.Context, db *gorm.DB, principalID, roleName string) (*models.Principal, *models.Role, error) {
	var principal models.Principal
	err := db.First(&principal, "id = ?", strings.TrimSpace(principalID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, nil, storeFailure("role service: load principal", err)
	}

	role, err := s.findRole(ctx, db, "name = ?", strings.TrimSpace(roleName))
	if err != nil {
		return nil, nil, err
	}
	return &principal, role, nil
}

func (s *RoleService) findRole(_ context.Context, db *gorm.DB, query string, arg string) (*models.Role, error) {
	var role models.Role
	err := db.
		Preload("Permissions", func(db *gorm.DB) *gorm.DB { return db.Order("permissions.name") }).
		First(&role, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, storeFailure("role service: load role", err)
	}
	return &role, nil
}

func findPermission(db *gorm.DB, query string, arg string) (*models.Permission, error) {
	var perm models.Permission
	err := db.First(&perm, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, storeFailure("permission lookup", err)
	}
	return &perm, nil
}

// loadPermissionsByID returns the permissions for ids, failing with ErrPermissionNotFound when any is missing.
func loadPermissionsByID(tx *gorm.DB, ids []string) ([]models.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var perms []models.Permission
	if err := tx.Where("id IN ?", ids).Order("name").Find(&perms).Error; err != nil {
		return nil, err
	}
	if len(perms) != len(ids) {
		return nil, ErrPermissionNotFound
	}
	return perms, nil
}

func insertRolePermissions(tx *gorm.DB, roleID string, perms []models.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	edges := make([]models.RolePermission, 0, len(perms))
	for _, perm := range perms {
		edges = append(edges, models.RolePermission{RoleID: roleID, PermissionID: perm.ID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
}

// wrapGraphWriteError keeps application errors, maps uniqueness violations to
// a validation failure, and reports everything else as a store failure.
func wrapGraphWriteError(scope, duplicateMessage string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case duplicateMessage != "" && isUniqueConstraintError(err):
		return apperrors.NewValidation(duplicateMessage)
	default:
		return storeFailure(scope, err)
	}
}

func wrapGraphReadError(scope string, notFound error, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	default:
		return storeFailure(scope, err)
	}
}
