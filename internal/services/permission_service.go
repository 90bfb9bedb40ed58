package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
)

// CreatePermissionInput describes the payload accepted by PermissionService.Create.
type CreatePermissionInput struct {
	Name        string `json:"name" validate:"required,max=100,token"`
	DisplayName string `json:"display_name" validate:"max=255"`
	Description string `json:"description" validate:"max=1000"`
	Group       string `json:"group" validate:"omitempty,max=100,token"`
}

// UpdatePermissionInput describes mutable permission fields.
type UpdatePermissionInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100,token"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Group       *string `json:"group" validate:"omitempty,max=100,token"`
}

// PermissionService manages the permission catalog stored in the database.
type PermissionService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewPermissionService constructs a PermissionService using the provided database handle.
func NewPermissionService(db *gorm.DB, audit *AuditService) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	return &PermissionService{db: db, audit: audit}, nil
}

// List returns permissions ordered by group and name, optionally restricted to one group.
func (s *PermissionService) List(ctx context.Context, group string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Permission{})
	if g := strings.TrimSpace(group); g != "" {
		query = query.Where("group_name = ?", g)
	}

	var perms []models.Permission
	if err := query.Order("group_name").Order("name").Find(&perms).Error; err != nil {
		return nil, storeFailure("permission service: list", err)
	}
	return perms, nil
}

// Grouped returns permissions keyed by group for display.
func (s *PermissionService) Grouped(ctx context.Context) (map[string][]models.Permission, error) {
	perms, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Permission)
	for _, perm := range perms {
		out[perm.Group] = append(out[perm.Group], perm)
	}
	return out, nil
}

// Get loads a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*models.Permission, error) {
	return findPermission(s.db.WithContext(ensureContext(ctx)), "id = ?", strings.TrimSpace(id))
}

// GetByName loads a permission by its machine name.
func (s *PermissionService) GetByName(ctx context.Context, name string) (*models.Permission, error) {
	return findPermission(s.db.WithContext(ensureContext(ctx)), "name = ?", strings.TrimSpace(name))
}

// Create adds a permission to the catalog.
func (s *PermissionService) Create(ctx context.Context, actor Actor, input CreatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Group = strings.TrimSpace(input.Group)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	perm := &models.Permission{
		Name:        input.Name,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Description: strings.TrimSpace(input.Description),
		Group:       input.Group,
	}
	if perm.DisplayName == "" {
		perm.DisplayName = perm.Name
	}

	if err := s.db.WithContext(ctx).Create(perm).Error; err != nil {
		return nil, wrapGraphWriteError("permission service: create", "permission name has already been taken", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionCreate,
		ResourceType: ResourcePermission,
		ResourceID:   perm.ID,
		Description:  "Created permission: " + perm.Name,
		Properties:   map[string]any{"group": perm.Group},
		Origin:       actor.Origin,
	})
	return perm, nil
}

// Update modifies permission metadata.
func (s *PermissionService) Update(ctx context.Context, actor Actor, id string, input UpdatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	for _, field := range []**string{&input.Name, &input.Group} {
		if *field != nil {
			trimmed := strings.TrimSpace(**field)
			*field = &trimmed
		}
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	perm, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	fields := make([]string, 0, 4)
	if input.Name != nil && *input.Name != perm.Name {
		updates["name"] = *input.Name
		fields = append(fields, "name")
	}
	if input.DisplayName != nil {
		if v := strings.TrimSpace(*input.DisplayName); v != perm.DisplayName {
			updates["display_name"] = v
			fields = append(fields, "display_name")
		}
	}
	if input.Description != nil {
		if v := strings.TrimSpace(*input.Description); v != perm.Description {
			updates["description"] = v
			fields = append(fields, "description")
		}
	}
	if input.Group != nil && *input.Group != perm.Group {
		updates["group_name"] = *input.Group
		fields = append(fields, "group")
	}
	if len(updates) == 0 {
		return perm, nil
	}

	if err := s.db.WithContext(ctx).Model(perm).Updates(updates).Error; err != nil {
		return nil, wrapGraphWriteError("permission service: update", "permission name has already been taken", err)
	}

	updated, err := s.Get(ctx, perm.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionUpdate,
		ResourceType: ResourcePermission,
		ResourceID:   updated.ID,
		Description:  "Updated permission: " + updated.Name,
		Properties:   map[string]any{"fields": fields},
		Origin:       actor.Origin,
	})
	return updated, nil
}

// Delete removes a permission and every grant referencing it.
func (s *PermissionService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return err
	}

	var perm models.Permission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&perm, "id = ?", strings.TrimSpace(id)).Error; err != nil {
			return err
		}
		if err := tx.Where("permission_id = ?", perm.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&perm).Error
	})
	if err != nil {
		return wrapGraphReadError("permission service: delete", ErrPermissionNotFound, err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionDelete,
		ResourceType: ResourcePermission,
		ResourceID:   perm.ID,
		Description:  "Deleted permission: " + perm.Name,
		Origin:       actor.Origin,
	})
	return nil
}

// Count returns the number of stored permissions.
func (s *PermissionService) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Permission{}).Count(&total).Error; err != nil {
		return 0, storeFailure("permission service: count", err)
	}
	return total, nil
}
