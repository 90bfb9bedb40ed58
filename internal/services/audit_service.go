package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
)

// Resource types recorded in the audit log.
const (
	ResourcePrincipal  = "admin_user"
	ResourceRole       = "role"
	ResourcePermission = "permission"
	ResourceAuth       = "auth"
)

// Audit actions.
const (
	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionActivate         = "activate"
	ActionDeactivate       = "deactivate"
	ActionResetCredential  = "reset_credential"
	ActionAssignRole       = "assign_role"
	ActionUnassignRole     = "unassign_role"
	ActionSyncRoles        = "sync_roles"
	ActionGrantPermission  = "grant_permission"
	ActionRevokePermission = "revoke_permission"
	ActionSyncPermissions  = "sync_permissions"
	ActionLogin            = "login"
	ActionLogout           = "logout"
	ActionBootstrap        = "bootstrap"
)

// UnknownPrincipalName is displayed when an audit record's principal cannot be resolved.
const UnknownPrincipalName = "Unknown"

const defaultRecentDays = 7

// MaxAuditExport bounds the rows a single export loads. Narrower filters
// (since/until) reach older records.
const MaxAuditExport = 10000

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	PrincipalID  string
	Action       string
	ResourceType string
	ResourceID   string
	Description  string
	Properties   map[string]any
	Origin       Origin
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	PrincipalID  string
	Action       string
	ResourceType string
	ResourceID   string
	Search       string
	Since        *time.Time
	Until        *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService appends and reads audit records. Records are never updated or removed.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: time.Now}, nil
}

// Record validates and appends an audit record.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	ctx = ensureContext(ctx)

	principalID := strings.TrimSpace(entry.PrincipalID)
	action := strings.TrimSpace(entry.Action)
	resourceType := strings.TrimSpace(entry.ResourceType)

	switch {
	case principalID == "":
		return nil, apperrors.NewValidation("audit principal is required")
	case action == "":
		return nil, apperrors.NewValidation("audit action is required")
	case resourceType == "":
		return nil, apperrors.NewValidation("audit resource type is required")
	}

	record := &models.AuditLog{
		PrincipalID:  principalID,
		Action:       action,
		ResourceType: resourceType,
		Description:  strings.TrimSpace(entry.Description),
		IPAddress:    strings.TrimSpace(entry.Origin.IPAddress),
		UserAgent:    strings.TrimSpace(entry.Origin.UserAgent),
		CreatedAt:    s.now().UTC(),
	}
	if id := strings.TrimSpace(entry.ResourceID); id != "" {
		record.ResourceID = &id
	}
	if len(entry.Properties) > 0 {
		encoded, err := json.Marshal(entry.Properties)
		if err != nil {
			return nil, apperrors.NewValidation(fmt.Sprintf("audit properties: %v", err))
		}
		record.Properties = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, storeFailure("audit service: record", err)
	}
	return record, nil
}

// Get loads a single audit record with its principal resolved.
func (s *AuditService) Get(ctx context.Context, id string) (*models.AuditLog, error) {
	ctx = ensureContext(ctx)

	var record models.AuditLog
	err := s.db.WithContext(ctx).First(&record, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuditRecordNotFound
	}
	if err != nil {
		return nil, storeFailure("audit service: get", err)
	}

	records := []models.AuditLog{record}
	if err := s.attachPrincipals(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// List returns paginated audit logs ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := NormalisePage(opts.Page, opts.PageSize)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeFailure("audit service: count logs", err)
	}

	var results []models.AuditLog
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, storeFailure("audit service: list logs", err)
	}

	if err := s.attachPrincipals(ctx, results); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ForPrincipal returns the latest records attributed to principalID.
func (s *AuditService) ForPrincipal(ctx context.Context, principalID string, limit int) ([]models.AuditLog, error) {
	return s.latest(ctx, AuditFilters{PrincipalID: strings.TrimSpace(principalID)}, limit)
}

// ForResource returns the latest records for a resource type, optionally narrowed to one id.
func (s *AuditService) ForResource(ctx context.Context, resourceType, resourceID string, limit int) ([]models.AuditLog, error) {
	return s.latest(ctx, AuditFilters{
		ResourceType: strings.TrimSpace(resourceType),
		ResourceID:   strings.TrimSpace(resourceID),
	}, limit)
}

// Recent returns records created within the last days (7 when days <= 0).
func (s *AuditService) Recent(ctx context.Context, days, limit int) ([]models.AuditLog, error) {
	if days <= 0 {
		days = defaultRecentDays
	}
	since := s.now().AddDate(0, 0, -days)
	return s.latest(ctx, AuditFilters{Since: &since}, limit)
}

// Latest returns the newest records regardless of age.
func (s *AuditService) Latest(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.latest(ctx, AuditFilters{}, limit)
}

// Export returns up to limit matching records, newest first, and reports
// whether more matched. A limit outside (0, MaxAuditExport] means MaxAuditExport.
func (s *AuditService) Export(ctx context.Context, filters AuditFilters, limit int) ([]models.AuditLog, bool, error) {
	if limit <= 0 || limit > MaxAuditExport {
		limit = MaxAuditExport
	}
	logs, err := s.latest(ctx, filters, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(logs) > limit {
		return logs[:limit], true, nil
	}
	return logs, false, nil
}

// CountByPrincipal returns the number of records attributed to each principal id.
func (s *AuditService) CountByPrincipal(ctx context.Context, principalIDs []string) (map[string]int64, error) {
	ctx = ensureContext(ctx)

	counts := make(map[string]int64, len(principalIDs))
	ids := normaliseIDs(principalIDs)
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		PrincipalID string
		Total       int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Select("principal_id, COUNT(*) AS total").
		Where("principal_id IN ?", ids).
		Group("principal_id").
		Scan(&rows).Error; err != nil {
		return nil, storeFailure("audit service: count by principal", err)
	}

	for _, row := range rows {
		counts[row.PrincipalID] = row.Total
	}
	return counts, nil
}

func (s *AuditService) latest(ctx context.Context, filters AuditFilters, limit int) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, storeFailure("audit service: query logs", err)
	}

	if err := s.attachPrincipals(ctx, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// attachPrincipals resolves acting principals, including soft-deleted ones.
func (s *AuditService) attachPrincipals(ctx context.Context, logs []models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(logs))
	for _, log := range logs {
		ids = append(ids, log.PrincipalID)
	}
	ids = normaliseIDs(ids)

	var principals []models.Principal
	if err := s.db.WithContext(ctx).
		Unscoped().
		Select("id", "name", "email", "deleted_at").
		Where("id IN ?", ids).
		Find(&principals).Error; err != nil {
		return storeFailure("audit service: resolve principals", err)
	}

	byID := make(map[string]*models.PrincipalSummary, len(principals))
	for i := range principals {
		p := principals[i]
		byID[p.ID] = &models.PrincipalSummary{
			ID:      p.ID,
			Name:    p.Name,
			Email:   p.Email,
			Deleted: p.DeletedAt.Valid,
		}
	}

	for i := range logs {
		if summary, ok := byID[logs[i].PrincipalID]; ok {
			logs[i].Principal = summary
			continue
		}
		logs[i].Principal = &models.PrincipalSummary{ID: logs[i].PrincipalID, Name: UnknownPrincipalName}
	}
	return nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.PrincipalID != "" {
		query = query.Where("principal_id = ?", filters.PrincipalID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if q := strings.TrimSpace(filters.Search); q != "" {
		query = query.Where("LOWER(description) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	// Timestamps are stored in UTC; SQLite compares them as text.
	if filters.Since != nil {
		query = query.Where("created_at >= ?", filters.Since.UTC())
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", filters.Until.UTC())
	}
	return query
}
