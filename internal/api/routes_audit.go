package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/handlers"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/permissions"
)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, checker middleware.Authorizer) {
	audit := api.Group("/audit")
	audit.Use(middleware.RequirePermission(checker, permissions.ViewAuditLog))
	{
		audit.GET("", handler.List)
		audit.GET("/export", handler.Export)
		audit.GET("/:id", handler.Get)
	}
}
