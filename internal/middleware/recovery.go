package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/adminhub/pkg/errors"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/metrics"
	"github.com/charlesng35/adminhub/pkg/response"
)

// Recovery converts panics into a 500 envelope. The panic value and stack are
// logged with the request's correlation id; neither reaches the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.PanicsRecovered.Inc()
			logger.WithModule("http").Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", RequestIDFromContext(c)),
				zap.String("principal_id", c.GetString(CtxPrincipalIDKey)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			response.Error(c, apperrors.ErrInternalServer)
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 envelope for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.NewNotFound("ROUTE_NOT_FOUND", fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
