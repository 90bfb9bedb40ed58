package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/services"
	appErrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/response"
)

// requestContext returns the request context, or a background context when
// the handler is driven without an http.Request.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// originFrom captures where the request came from for audit attribution.
func originFrom(c *gin.Context) services.Origin {
	origin := services.Origin{IPAddress: c.ClientIP()}
	if c.Request != nil {
		origin.UserAgent = c.Request.UserAgent()
	}
	return origin
}

// actorFrom builds the acting principal from the authenticated request. It
// writes a 401 and returns false when no principal is present.
func actorFrom(c *gin.Context) (services.Actor, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{PrincipalID: principal.ID, Origin: originFrom(c)}, true
}
