package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/internal/permissions"
	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	authenticator *iauth.Authenticator
	sessions      *iauth.SessionService
	principals    *services.PrincipalService
	checker       *permissions.Checker
	audit         *services.AuditService
}

func NewAuthHandler(authenticator *iauth.Authenticator, sessions *iauth.SessionService, principals *services.PrincipalService, checker *permissions.Checker, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		sessions:      sessions,
		principals:    principals,
		checker:       checker,
		audit:         audit,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	origin := originFrom(c)

	principal, err := h.authenticator.Authenticate(ctx, iauth.AuthenticateInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: origin.IPAddress,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(ctx, principal.ID, iauth.SessionMetadata{
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.audit.Log(ctx, services.AuditEntry{
		PrincipalID:  principal.ID,
		Action:       services.ActionLogin,
		ResourceType: services.ResourceAuth,
		ResourceID:   principal.ID,
		Description:  "signed in",
		Origin:       origin,
	})

	perms, err := h.checker.PermissionsFor(ctx, principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens":      pair,
		"principal":   principal,
		"permissions": perms,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		response.Error(c, errors.NewBadRequest("refresh token is required"))
		return
	}

	ctx := requestContext(c)
	pair, session, err := h.sessions.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	// A rotated session must still belong to a principal that can act.
	principal, err := h.principals.Get(ctx, session.PrincipalID)
	if err != nil || !principal.CanAct() {
		if revokeErr := h.sessions.RevokeSession(ctx, session.ID); revokeErr != nil {
			logger.WithModule("auth").Warn("failed to revoke session of disabled principal",
				zap.String("session_id", session.ID),
				zap.Error(revokeErr),
			)
		}
		if err != nil && !errors.IsNotFound(err) {
			response.Error(c, err)
			return
		}
		response.Error(c, errors.ErrAccountInactive)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// POST /api/auth/logout[?all=true]
//
// Revokes the calling session, or with all=true every session of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	sid := c.GetString(middleware.CtxSessionIDKey)
	if sid == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)
	everywhere := c.Query("all") == "true"

	revoked := int64(1)
	var err error
	if everywhere {
		revoked, err = h.sessions.RevokePrincipalSessions(ctx, actor.PrincipalID)
	} else {
		err = h.sessions.RevokeSession(ctx, sid)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	description := "signed out"
	if everywhere {
		description = "signed out of all sessions"
	}
	h.audit.Log(ctx, services.AuditEntry{
		PrincipalID:  actor.PrincipalID,
		Action:       services.ActionLogout,
		ResourceType: services.ResourceAuth,
		ResourceID:   actor.PrincipalID,
		Description:  description,
		Origin:       actor.Origin,
		Properties:   map[string]any{"sessions_revoked": revoked},
	})

	response.Success(c, http.StatusOK, gin.H{"revoked": true, "sessions": revoked})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)
	perms, err := h.checker.PermissionsFor(ctx, principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	superAdmin, err := h.checker.IsSuperAdmin(ctx, principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"principal":      principal,
		"roles":          roleNames(principal.Roles),
		"permissions":    perms,
		"is_super_admin": superAdmin,
	})
}

func roleNames(roles []models.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}
