package permissions

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

// Checker answers authorization questions against the live role/permission graph.
// Nothing is cached: every call reflects committed state.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a permission checker backed by the provided database.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Authorize decides whether principal may exercise permission. An empty
// permission only requires an active principal. Holders of the super-admin
// role are allowed before any permission lookup happens.
func (c *Checker) Authorize(ctx context.Context, principal *models.Principal, permission string) (bool, error) {
	ctx = ensureContext(ctx)

	if principal == nil || strings.TrimSpace(principal.ID) == "" {
		return false, apperrors.ErrUnauthorized
	}
	if !principal.CanAct() {
		return false, nil
	}

	active, err := c.isActive(ctx, principal.ID)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}

	superAdmin, err := c.hasRole(ctx, principal.ID, models.SuperAdminRole)
	if err != nil {
		return false, err
	}
	if superAdmin {
		return true, nil
	}

	permission = strings.TrimSpace(permission)
	if permission == "" {
		return true, nil
	}

	return c.hasPermission(ctx, principal.ID, permission)
}

// IsSuperAdmin reports whether the principal currently holds the super-admin role.
func (c *Checker) IsSuperAdmin(ctx context.Context, principal *models.Principal) (bool, error) {
	ctx = ensureContext(ctx)
	if principal == nil || principal.ID == "" {
		return false, apperrors.ErrUnauthorized
	}
	return c.hasRole(ctx, principal.ID, models.SuperAdminRole)
}

// PermissionsFor returns the sorted permission names the principal effectively
// holds. Super-admins receive every stored permission.
func (c *Checker) PermissionsFor(ctx context.Context, principal *models.Principal) ([]string, error) {
	ctx = ensureContext(ctx)

	if principal == nil || principal.ID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if !principal.CanAct() {
		return []string{}, nil
	}

	superAdmin, err := c.hasRole(ctx, principal.ID, models.SuperAdminRole)
	if err != nil {
		return nil, err
	}

	var names []string
	query := c.db.WithContext(ctx).Model(&models.Permission{})
	if !superAdmin {
		query = query.
			Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
			Joins("JOIN principal_roles ON principal_roles.role_id = role_permissions.role_id").
			Where("principal_roles.principal_id = ?", principal.ID)
	}
	if err := query.Pluck("permissions.name", &names).Error; err != nil {
		return nil, storeError(err)
	}

	return uniqueSorted(names), nil
}

func (c *Checker) isActive(ctx context.Context, principalID string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.Principal{}).
		Where("id = ? AND is_active = ?", principalID, true).
		Count(&count).Error
	if err != nil {
		return false, storeError(err)
	}
	return count > 0, nil
}

func (c *Checker) hasRole(ctx context.Context, principalID, role string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.PrincipalRole{}).
		Joins("JOIN roles ON roles.id = principal_roles.role_id").
		Where("principal_roles.principal_id = ? AND roles.name = ?", principalID, role).
		Count(&count).Error
	if err != nil {
		return false, storeError(err)
	}
	return count > 0, nil
}

func (c *Checker) hasPermission(ctx context.Context, principalID, permission string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.PrincipalRole{}).
		Joins("JOIN role_permissions ON role_permissions.role_id = principal_roles.role_id").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("principal_roles.principal_id = ? AND permissions.name = ?", principalID, permission).
		Count(&count).Error
	if err != nil {
		return false, storeError(err)
	}
	return count > 0, nil
}

func storeError(err error) error {
	return apperrors.ErrStoreUnavailable.WithInternal(err)
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
