package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/response"
)

const (
	CtxClaimsKey      = "authClaims"
	CtxPrincipalKey   = "principal"
	CtxPrincipalIDKey = "principalID"
	CtxSessionIDKey   = "sessionID"
)

// PrincipalLoader resolves the principal named by an access token.
type PrincipalLoader interface {
	Get(ctx context.Context, id string) (*models.Principal, error)
}

// SessionValidator rejects access tokens whose session was revoked or expired.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID string) error
}

// Auth enforces bearer JWT authentication and loads the acting principal.
// Inactive or deleted principals are rejected with 401. sessions may be nil.
func Auth(jwt *iauth.JWTService, sessions SessionValidator, principals PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			unauthorized(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			if errors.Is(err, iauth.ErrAccessTokenExpired) {
				unauthorized(c, iauth.ErrAccessTokenExpired)
				return
			}
			unauthorized(c, apperrors.ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		if sessions != nil && claims.SessionID != "" {
			if err := sessions.ValidateSession(ctx, claims.SessionID); err != nil {
				if errors.Is(err, apperrors.ErrStoreUnavailable) {
					response.Error(c, err)
					return
				}
				unauthorized(c, apperrors.ErrUnauthorized)
				return
			}
		}

		principal, err := principals.Get(ctx, claims.PrincipalID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				unauthorized(c, apperrors.ErrUnauthorized)
				return
			}
			response.Error(c, err)
			return
		}
		if !principal.CanAct() {
			unauthorized(c, apperrors.ErrAccountInactive)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxPrincipalKey, principal)
		c.Set(CtxPrincipalIDKey, principal.ID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}

		c.Next()
	}
}

// PrincipalFromContext returns the principal stored by Auth.
func PrincipalFromContext(c *gin.Context) (*models.Principal, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := v.(*models.Principal)
	return principal, ok && principal != nil
}

func unauthorized(c *gin.Context, err error) {
	c.Header("WWW-Authenticate", "Bearer")
	response.Error(c, err)
}
