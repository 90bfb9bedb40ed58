package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/handlers"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/permissions"
)

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, checker middleware.Authorizer) {
	manage := middleware.RequirePermission(checker, permissions.ManageRoles)

	perms := api.Group("/permissions")
	{
		perms.GET("/my", middleware.RequirePermission(checker, ""), handler.Mine)
		perms.GET("/registry", manage, handler.Registry)
		perms.GET("", manage, handler.List)
		perms.POST("", manage, handler.Create)
		perms.GET("/:id", manage, handler.Get)
		perms.PATCH("/:id", manage, handler.Update)
		perms.DELETE("/:id", manage, handler.Delete)
	}
}

func registerRoleRoutes(api *gin.RouterGroup, handler *handlers.RoleHandler, checker middleware.Authorizer) {
	roles := api.Group("/roles")
	roles.Use(middleware.RequirePermission(checker, permissions.ManageRoles))
	{
		roles.GET("", handler.List)
		roles.POST("", handler.Create)
		roles.GET("/:id", handler.Get)
		roles.PATCH("/:id", handler.Update)
		roles.DELETE("/:id", handler.Delete)
		roles.PUT("/:id/permissions", handler.SetPermissions)
		roles.POST("/:id/permissions/:permission", handler.GrantPermission)
		roles.DELETE("/:id/permissions/:permission", handler.RevokePermission)
	}
}
