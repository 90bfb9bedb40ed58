package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
)

const dashboardActivityLimit = 10

// DashboardStats summarises the size of the back-office.
type DashboardStats struct {
	TotalAdmins      int64 `json:"total_admins"`
	ActiveAdmins     int64 `json:"active_admins"`
	TotalRoles       int64 `json:"total_roles"`
	TotalPermissions int64 `json:"total_permissions"`
}

// DashboardOverview is the landing payload for an authenticated admin.
type DashboardOverview struct {
	Stats          DashboardStats    `json:"stats"`
	RecentActivity []models.AuditLog `json:"recent_activity"`
	Roles          []string          `json:"roles"`
	IsSuperAdmin   bool              `json:"is_super_admin"`
}

// DashboardService aggregates counts and recent activity.
type DashboardService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(db *gorm.DB, audit *AuditService) (*DashboardService, error) {
	if db == nil {
		return nil, errors.New("dashboard service: db is required")
	}
	if audit == nil {
		return nil, errors.New("dashboard service: audit service is required")
	}
	return &DashboardService{db: db, audit: audit}, nil
}

// Stats counts admins, active admins, roles, and permissions.
func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var stats DashboardStats
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.Principal{}), &stats.TotalAdmins},
		{db.Model(&models.Principal{}).Where("is_active = ?", true), &stats.ActiveAdmins},
		{db.Model(&models.Role{}), &stats.TotalRoles},
		{db.Model(&models.Permission{}), &stats.TotalPermissions},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return DashboardStats{}, storeFailure("dashboard service: stats", err)
		}
	}
	return stats, nil
}

// Overview builds the dashboard for principal.
func (s *DashboardService) Overview(ctx context.Context, principal *models.Principal) (*DashboardOverview, error) {
	ctx = ensureContext(ctx)

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	activity, err := s.audit.Latest(ctx, dashboardActivityLimit)
	if err != nil {
		return nil, err
	}

	overview := &DashboardOverview{
		Stats:          stats,
		RecentActivity: activity,
		Roles:          []string{},
	}
	if principal != nil {
		overview.Roles = roleNames(principal.Roles)
		overview.IsSuperAdmin = principal.HasRole(models.SuperAdminRole)
	}
	return overview, nil
}
