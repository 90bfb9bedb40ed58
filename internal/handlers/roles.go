package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/response"
)

// RoleHandler exposes role management and role/permission grants.
type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.roles.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.CreateRoleInput
	if !bindAndValidate(c, &req) {
		return
	}
	role, err := h.roles.Create(requestContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req services.UpdateRoleInput
	if !bindAndValidate(c, &req) {
		return
	}
	role, err := h.roles.Update(requestContext(c), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if err := h.roles.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"omitempty,dive,required"`
}

// PUT /api/roles/:id/permissions
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req setPermissionsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	role, err := h.roles.SetPermissions(requestContext(c), actor, c.Param("id"), req.PermissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles/:id/permissions/:permission
func (h *RoleHandler) GrantPermission(c *gin.Context) {
	h.changeGrant(c, true)
}

// DELETE /api/roles/:id/permissions/:permission
func (h *RoleHandler) RevokePermission(c *gin.Context) {
	h.changeGrant(c, false)
}

func (h *RoleHandler) changeGrant(c *gin.Context, grant bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	ctx := requestContext(c)
	role, err := h.roles.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var changed bool
	if grant {
		changed, err = h.roles.GrantPermission(ctx, actor, role.Name, c.Param("permission"))
	} else {
		changed, err = h.roles.RevokePermission(ctx, actor, role.Name, c.Param("permission"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}
