package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/handlers"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/permissions"
)

func registerPrincipalRoutes(api *gin.RouterGroup, handler *handlers.PrincipalHandler, checker middleware.Authorizer) {
	manageAdmins := middleware.RequirePermission(checker, permissions.ManageAdmins)
	manageRoles := middleware.RequirePermission(checker, permissions.ManageRoles)

	principals := api.Group("/principals")
	{
		principals.GET("", manageAdmins, handler.List)
		principals.POST("", manageAdmins, handler.Create)
		principals.GET("/:id", manageAdmins, handler.Get)
		principals.PATCH("/:id", manageAdmins, handler.Update)
		principals.DELETE("/:id", manageAdmins, handler.Delete)
		principals.POST("/:id/activate", manageAdmins, handler.Activate)
		principals.POST("/:id/deactivate", manageAdmins, handler.Deactivate)
		principals.POST("/:id/credential", manageAdmins, handler.ResetCredential)

		principals.PUT("/:id/roles", manageRoles, handler.SetRoles)
		principals.POST("/:id/roles/:role", manageRoles, handler.AssignRole)
		principals.DELETE("/:id/roles/:role", manageRoles, handler.UnassignRole)
	}
}
