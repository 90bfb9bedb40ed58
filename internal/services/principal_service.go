package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

// CreatePrincipalInput describes the fields accepted when creating an admin user.
type CreatePrincipalInput struct {
	Name     string   `json:"name" validate:"required,max=255"`
	Email    string   `json:"email" validate:"required,email,max=255"`
	Password string   `json:"password" validate:"required,min=8,max=128"`
	IsActive *bool    `json:"is_active"`
	RoleIDs  []string `json:"role_ids" validate:"omitempty,dive,required"`
}

// UpdatePrincipalInput enumerates mutable admin user attributes.
type UpdatePrincipalInput struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
	IsActive *bool   `json:"is_active"`
}

// PrincipalFilters captures listing filters. Status accepts "active" or "inactive".
type PrincipalFilters struct {
	Query  string
	Status string
}

// ListPrincipalsOptions controls pagination for admin user listing.
type ListPrincipalsOptions struct {
	Page     int
	PageSize int
	Filters  PrincipalFilters
}

// PrincipalService manages the lifecycle of administrative accounts.
type PrincipalService struct {
	db     *gorm.DB
	audit  *AuditService
	hasher crypto.Hasher
}

// NewPrincipalService constructs a PrincipalService. A nil hasher falls back to crypto.DefaultHasher.
func NewPrincipalService(db *gorm.DB, audit *AuditService, hasher crypto.Hasher) (*PrincipalService, error) {
	if db == nil {
		return nil, errors.New("principal service: db is required")
	}
	if hasher == nil {
		hasher = crypto.DefaultHasher
	}
	return &PrincipalService{db: db, audit: audit, hasher: hasher}, nil
}

// Create provisions a new admin user with a hashed credential and optional roles.
func (s *PrincipalService) Create(ctx context.Context, actor Actor, input CreatePrincipalInput) (*models.Principal, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	principal, err := s.create(ctx, s.db.WithContext(ctx), input)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionCreate,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Created admin user: " + principal.Name,
		Properties: map[string]any{
			"email": principal.Email,
			"roles": roleNames(principal.Roles),
		},
		Origin: actor.Origin,
	})

	return principal, nil
}

// create validates input and inserts the principal and its role edges using db.
func (s *PrincipalService) create(ctx context.Context, db *gorm.DB, input CreatePrincipalInput) (*models.Principal, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normaliseEmail(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if err := s.ensureEmailAvailable(ctx, db, input.Email, ""); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("principal service: hash password: %w", err)
	}

	principal := &models.Principal{
		Name:     input.Name,
		Email:    input.Email,
		Password: hashed,
		IsActive: true,
	}
	if input.IsActive != nil {
		principal.IsActive = *input.IsActive
	}

	roleIDs := normaliseIDs(input.RoleIDs)
	err = db.Transaction(func(tx *gorm.DB) error {
		roles, err := loadRolesByID(tx, roleIDs)
		if err != nil {
			return err
		}
		if err := tx.Create(principal).Error; err != nil {
			return err
		}
		if err := insertPrincipalRoles(tx, principal.ID, roles); err != nil {
			return err
		}
		principal.Roles = roles
		return nil
	})
	if err != nil {
		return nil, s.wrapWriteError("create", err)
	}

	return principal, nil
}

// Get loads an admin user by identifier including roles and their permissions.
func (s *PrincipalService) Get(ctx context.Context, id string) (*models.Principal, error) {
	ctx = ensureContext(ctx)

	var principal models.Principal
	err := s.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB { return db.Order("roles.name") }).
		Preload("Roles.Permissions").
		First(&principal, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, storeFailure("principal service: get", err)
	}
	return &principal, nil
}

// GetByEmail loads an admin user by email, case-insensitively.
func (s *PrincipalService) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	ctx = ensureContext(ctx)

	var principal models.Principal
	err := s.db.WithContext(ctx).Preload("Roles").First(&principal, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, storeFailure("principal service: get by email", err)
	}
	return &principal, nil
}

// List retrieves admin users matching the supplied filters with pagination.
func (s *PrincipalService) List(ctx context.Context, opts ListPrincipalsOptions) ([]models.Principal, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := NormalisePage(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Principal{})
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	switch strings.ToLower(strings.TrimSpace(opts.Filters.Status)) {
	case "":
	case string(models.PrincipalActive):
		query = query.Where("is_active = ?", true)
	case string(models.PrincipalInactive):
		query = query.Where("is_active = ?", false)
	default:
		return nil, 0, apperrors.NewValidation("status must be active or inactive")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeFailure("principal service: count", err)
	}

	var principals []models.Principal
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("Roles").
		Find(&principals).Error; err != nil {
		return nil, 0, storeFailure("principal service: list", err)
	}

	return principals, total, nil
}

// Update persists mutable attributes for an existing admin user.
func (s *PrincipalService) Update(ctx context.Context, actor Actor, id string, input UpdatePrincipalInput) (*models.Principal, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if input.Email != nil {
		normalised := normaliseEmail(*input.Email)
		input.Email = &normalised
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	principal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	changed := make([]string, 0, 4)

	if input.Name != nil && *input.Name != principal.Name {
		updates["name"] = *input.Name
		changed = append(changed, "name")
	}
	if input.Email != nil && *input.Email != principal.Email {
		if err := s.ensureEmailAvailable(ctx, s.db.WithContext(ctx), *input.Email, principal.ID); err != nil {
			return nil, err
		}
		updates["email"] = *input.Email
		changed = append(changed, "email")
	}
	if input.Password != nil {
		hashed, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("principal service: hash password: %w", err)
		}
		updates["password"] = hashed
		changed = append(changed, "password")
	}
	if input.IsActive != nil && *input.IsActive != principal.IsActive {
		updates["is_active"] = *input.IsActive
		changed = append(changed, "is_active")
	}

	if len(updates) == 0 {
		return principal, nil
	}

	if err := s.db.WithContext(ctx).Model(principal).Updates(updates).Error; err != nil {
		return nil, s.wrapWriteError("update", err)
	}

	updated, err := s.Get(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionUpdate,
		ResourceType: ResourcePrincipal,
		ResourceID:   updated.ID,
		Description:  "Updated admin user: " + updated.Name,
		Properties:   map[string]any{"fields": changed},
		Origin:       actor.Origin,
	})

	return updated, nil
}

// SetActive toggles whether the admin user may authenticate. No record is
// written when the state is unchanged.
func (s *PrincipalService) SetActive(ctx context.Context, actor Actor, id string, active bool) (*models.Principal, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	principal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if principal.IsActive == active {
		return principal, nil
	}

	if err := s.db.WithContext(ctx).Model(principal).Update("is_active", active).Error; err != nil {
		return nil, storeFailure("principal service: set active", err)
	}
	principal.IsActive = active

	action, verb := ActionDeactivate, "Deactivated"
	if active {
		action, verb = ActionActivate, "Activated"
	}
	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       action,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  verb + " admin user: " + principal.Name,
		Origin:       actor.Origin,
	})

	return principal, nil
}

// ResetCredential replaces the admin user's password and clears any lockout.
func (s *PrincipalService) ResetCredential(ctx context.Context, actor Actor, id, password string) error {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return err
	}

	input := struct {
		Password string `json:"password" validate:"required,min=8,max=128"`
	}{Password: password}
	if err := validateInput(input); err != nil {
		return err
	}

	principal, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("principal service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(principal).Updates(map[string]any{
		"password":        hashed,
		"failed_attempts": 0,
		"locked_until":    nil,
	}).Error; err != nil {
		return storeFailure("principal service: reset credential", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionResetCredential,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Reset credential for admin user: " + principal.Name,
		Origin:       actor.Origin,
	})
	return nil
}

// Delete soft-deletes the admin user and removes its role assignments. Actors
// cannot delete themselves; that check happens before any read or write.
func (s *PrincipalService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if id == actor.PrincipalID {
		return ErrCannotDeleteSelf
	}

	var principal models.Principal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&principal, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("principal_id = ?", principal.ID).Delete(&models.PrincipalRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&principal).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPrincipalNotFound
	}
	if err != nil {
		return storeFailure("principal service: delete", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionDelete,
		ResourceType: ResourcePrincipal,
		ResourceID:   principal.ID,
		Description:  "Deleted admin user: " + principal.Name,
		Properties:   map[string]any{"email": principal.Email},
		Origin:       actor.Origin,
	})
	return nil
}

// SetRoles replaces role assignments for the specified admin user. Unknown
// role ids fail the whole call with ErrRoleNotFound.
func (s *PrincipalService) SetRoles(ctx context.Context, actor Actor, id string, roleIDs []string) (*models.Principal, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	principal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	wanted := normaliseIDs(roleIDs)
	current := make([]string, 0, len(principal.Roles))
	for _, role := range principal.Roles {
		current = append(current, role.ID)
	}
	added, removed := diffIDs(current, wanted)
	if len(added) == 0 && len(removed) == 0 {
		return principal, nil
	}

	var addedRoles []models.Role
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles, err := loadRolesByID(tx, added)
		if err != nil {
			return err
		}
		addedRoles = roles
		if len(removed) > 0 {
			if err := tx.Where("principal_id = ? AND role_id IN ?", principal.ID, removed).
				Delete(&models.PrincipalRole{}).Error; err != nil {
				return err
			}
		}
		return insertPrincipalRoles(tx, principal.ID, roles)
	})
	if err != nil {
		return nil, s.wrapWriteError("set roles", err)
	}

	removedNames := make([]string, 0, len(removed))
	for _, role := range principal.Roles {
		for _, rid := range removed {
			if role.ID == rid {
				removedNames = append(removedNames, role.Name)
			}
		}
	}

	updated, err := s.Get(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       ActionSyncRoles,
		ResourceType: ResourcePrincipal,
		ResourceID:   updated.ID,
		Description:  "Updated roles for admin user: " + updated.Name,
		Properties: map[string]any{
			"added":   roleNames(addedRoles),
			"removed": removedNames,
		},
		Origin: actor.Origin,
	})

	return updated, nil
}

// RecordLogin stamps a successful login at the given time and clears failed
// attempt counters and any expired lock.
func (s *PrincipalService) RecordLogin(ctx context.Context, principalID, ipAddress string, at time.Time) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Model(&models.Principal{}).
		Where("id = ?", principalID).
		Updates(map[string]any{
			"last_login_at":   at,
			"last_login_ip":   strings.TrimSpace(ipAddress),
			"failed_attempts": 0,
			"locked_until":    nil,
		}).Error
	if err != nil {
		return storeFailure("principal service: record login", err)
	}
	return nil
}

// Count returns the number of non-deleted admin users, optionally only active ones.
func (s *PrincipalService) Count(ctx context.Context, activeOnly bool) (int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Principal{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, storeFailure("principal service: count", err)
	}
	return total, nil
}

// ensureEmailAvailable rejects emails held by any other principal, deleted ones included.
func (s *PrincipalService) ensureEmailAvailable(ctx context.Context, db *gorm.DB, email, exceptID string) error {
	query := db.WithContext(ctx).Unscoped().Model(&models.Principal{}).Where("LOWER(email) = ?", email)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return storeFailure("principal service: check email", err)
	}
	if count > 0 {
		return apperrors.NewValidation("email has already been taken")
	}
	return nil
}

func (s *PrincipalService) wrapWriteError(op string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case isUniqueConstraintError(err):
		return apperrors.NewValidation("email has already been taken")
	default:
		return storeFailure("principal service: "+op, err)
	}
}

// loadRolesByID returns the roles for ids, failing with ErrRoleNotFound when any is missing.
func loadRolesByID(tx *gorm.DB, ids []string) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []models.Role
	if err := tx.Where("id IN ?", ids).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(ids) {
		return nil, ErrRoleNotFound
	}
	return roles, nil
}

func insertPrincipalRoles(tx *gorm.DB, principalID string, roles []models.Role) error {
	if len(roles) == 0 {
		return nil
	}
	edges := make([]models.PrincipalRole, 0, len(roles))
	for _, role := range roles {
		edges = append(edges, models.PrincipalRole{PrincipalID: principalID, RoleID: role.ID})
	}
	return tx.Create(&edges).Error
}

func roleNames(roles []models.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	sort.Strings(names)
	return names
}
