package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/adminhub/internal/models"
	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/metrics"
	"github.com/charlesng35/adminhub/pkg/response"
)

// Authorizer decides whether a principal holds a permission.
type Authorizer interface {
	Authorize(ctx context.Context, principal *models.Principal, permission string) (bool, error)
}

// RequirePermission gates the route on permission. Missing principals get 401,
// denials 403 and store failures 503.
func RequirePermission(authorizer Authorizer, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}

		allowed, err := authorizer.Authorize(c.Request.Context(), principal, permission)
		if err != nil {
			metrics.AuthorizationDecisions.WithLabelValues(permission, "error").Inc()
			logger.WithModule("authz").Error("permission check failed",
				zap.String("principal_id", principal.ID),
				zap.String("permission", permission),
				zap.Error(err),
			)
			response.Error(c, err)
			return
		}
		if !allowed {
			metrics.AuthorizationDecisions.WithLabelValues(permission, "deny").Inc()
			response.Error(c, apperrors.ErrForbidden)
			return
		}

		metrics.AuthorizationDecisions.WithLabelValues(permission, "allow").Inc()
		c.Next()
	}
}
