package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/permissions"
	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/response"
)

// PermissionHandler exposes the permission catalog.
type PermissionHandler struct {
	permissions *services.PermissionService
	checker     *permissions.Checker
}

func NewPermissionHandler(perms *services.PermissionService, checker *permissions.Checker) *PermissionHandler {
	return &PermissionHandler{permissions: perms, checker: checker}
}

// GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	list, err := h.permissions.List(requestContext(c), strings.TrimSpace(c.Query("group")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// GET /api/permissions/registry
func (h *PermissionHandler) Registry(c *gin.Context) {
	grouped, err := h.permissions.Grouped(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grouped)
}

// GET /api/permissions/my
func (h *PermissionHandler) Mine(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	perms, err := h.checker.PermissionsFor(requestContext(c), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}

// GET /api/permissions/:id
func (h *PermissionHandler) Get(c *gin.Context) {
	perm, err := h.permissions.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// POST /api/permissions
func (h *PermissionHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.CreatePermissionInput
	if !bindAndValidate(c, &req) {
		return
	}
	perm, err := h.permissions.Create(requestContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, perm)
}

// PATCH /api/permissions/:id
func (h *PermissionHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.UpdatePermissionInput
	if !bindAndValidate(c, &req) {
		return
	}
	perm, err := h.permissions.Update(requestContext(c), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// DELETE /api/permissions/:id
func (h *PermissionHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.permissions.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
