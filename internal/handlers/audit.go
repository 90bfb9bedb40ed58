package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/response"
)

// ExportTruncatedHeader is set to "true" when an export hit its row limit.
const ExportTruncatedHeader = "X-Export-Truncated"

// AuditHandler serves read-only access to the audit trail.
type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	filters, ok := auditFiltersFrom(c)
	if !ok {
		return
	}
	page, per := services.NormalisePage(parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))

	logs, total, err := h.svc.List(requestContext(c), services.AuditListOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, per, total))
}

// GET /api/audit/:id
func (h *AuditHandler) Get(c *gin.Context) {
	record, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// GET /api/audit/export
func (h *AuditHandler) Export(c *gin.Context) {
	filters, ok := auditFiltersFrom(c)
	if !ok {
		return
	}

	logs, truncated, err := h.svc.Export(requestContext(c), filters, parseIntQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}

	if truncated {
		c.Header(ExportTruncatedHeader, "true")
	}
	c.Header("Content-Disposition", `attachment; filename="audit-log.json"`)
	response.Success(c, http.StatusOK, logs)
}

func auditFiltersFrom(c *gin.Context) (services.AuditFilters, bool) {
	filters := services.AuditFilters{
		PrincipalID:  strings.TrimSpace(c.Query("principal_id")),
		Action:       strings.TrimSpace(c.Query("action")),
		ResourceType: strings.TrimSpace(c.Query("resource_type")),
		ResourceID:   strings.TrimSpace(c.Query("resource_id")),
		Search:       strings.TrimSpace(c.Query("q")),
	}

	since, err := parseTimeQuery(c, "since")
	if err != nil {
		response.Error(c, err)
		return filters, false
	}
	until, err := parseTimeQuery(c, "until")
	if err != nil {
		response.Error(c, err)
		return filters, false
	}
	filters.Since = since
	filters.Until = until
	return filters, true
}
