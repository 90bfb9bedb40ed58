package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/response"
)

const principalActivityLimit = 20

// PrincipalHandler exposes admin user management endpoints.
type PrincipalHandler struct {
	principals *services.PrincipalService
	roles      *services.RoleService
	audit      *services.AuditService
	sessions   *iauth.SessionService
}

func NewPrincipalHandler(principals *services.PrincipalService, roles *services.RoleService, audit *services.AuditService, sessions *iauth.SessionService) *PrincipalHandler {
	return &PrincipalHandler{principals: principals, roles: roles, audit: audit, sessions: sessions}
}

type principalSummary struct {
	models.Principal
	Status     models.PrincipalStatus `json:"status"`
	AuditCount int64                  `json:"audit_count"`
}

// GET /api/principals
func (h *PrincipalHandler) List(c *gin.Context) {
	ctx := requestContext(c)
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 0)

	list, total, err := h.principals.List(ctx, services.ListPrincipalsOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.PrincipalFilters{
			Query:  strings.TrimSpace(c.Query("q")),
			Status: strings.TrimSpace(c.Query("status")),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	ids := make([]string, 0, len(list))
	for _, principal := range list {
		ids = append(ids, principal.ID)
	}
	counts, err := h.audit.CountByPrincipal(ctx, ids)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]principalSummary, 0, len(list))
	for _, principal := range list {
		items = append(items, principalSummary{
			Principal:  principal,
			Status:     principal.Status(),
			AuditCount: counts[principal.ID],
		})
	}

	page, perPage = services.NormalisePage(page, perPage)
	response.SuccessWithMeta(c, http.StatusOK, items, response.NewMeta(page, perPage, total))
}

// GET /api/principals/:id
func (h *PrincipalHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	principal, err := h.principals.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	activity, err := h.audit.ForPrincipal(ctx, principal.ID, principalActivityLimit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"principal":       principal,
		"status":          principal.Status(),
		"recent_activity": activity,
	})
}

// POST /api/principals
func (h *PrincipalHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.CreatePrincipalInput
	if !bindAndValidate(c, &req) {
		return
	}

	principal, err := h.principals.Create(requestContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, principal)
}

// PATCH /api/principals/:id
func (h *PrincipalHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.UpdatePrincipalInput
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	principal, err := h.principals.Update(ctx, actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !principal.CanAct() || req.Password != nil {
		h.revokeSessions(c, principal.ID)
	}
	response.Success(c, http.StatusOK, principal)
}

// DELETE /api/principals/:id
func (h *PrincipalHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.principals.Delete(requestContext(c), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	h.revokeSessions(c, id)
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/principals/:id/activate
func (h *PrincipalHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// POST /api/principals/:id/deactivate
func (h *PrincipalHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PrincipalHandler) setActive(c *gin.Context, active bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	principal, err := h.principals.SetActive(requestContext(c), actor, c.Param("id"), active)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !active {
		h.revokeSessions(c, principal.ID)
	}
	response.Success(c, http.StatusOK, principal)
}

type credentialRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// POST /api/principals/:id/credential
func (h *PrincipalHandler) ResetCredential(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req credentialRequest
	if !bindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.principals.ResetCredential(requestContext(c), actor, id, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	h.revokeSessions(c, id)
	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

type setRolesRequest struct {
	RoleIDs []string `json:"role_ids" validate:"omitempty,dive,required"`
}

// PUT /api/principals/:id/roles
func (h *PrincipalHandler) SetRoles(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req setRolesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	principal, err := h.principals.SetRoles(requestContext(c), actor, c.Param("id"), req.RoleIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, principal)
}

// POST /api/principals/:id/roles/:role
func (h *PrincipalHandler) AssignRole(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	changed, err := h.roles.AssignRole(requestContext(c), actor, c.Param("id"), c.Param("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}

// DELETE /api/principals/:id/roles/:role
func (h *PrincipalHandler) UnassignRole(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	changed, err := h.roles.UnassignRole(requestContext(c), actor, c.Param("id"), c.Param("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}

// revokeSessions ends every session of a principal that should no longer act
// or whose credential changed. The mutation already committed, so failures
// are only logged.
func (h *PrincipalHandler) revokeSessions(c *gin.Context, principalID string) {
	if h.sessions == nil {
		return
	}
	if _, err := h.sessions.RevokePrincipalSessions(requestContext(c), principalID); err != nil {
		logger.WithModule("principals").Warn("failed to revoke sessions",
			zap.String("principal_id", principalID),
			zap.Error(err),
		)
	}
}
