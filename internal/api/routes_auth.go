package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adminhub/internal/handlers"
	"github.com/charlesng35/adminhub/internal/middleware"
)

// registerPublicRoutes mounts the endpoints reachable without a bearer token.
func registerPublicRoutes(r *gin.Engine, setup *handlers.SetupHandler, auth *handlers.AuthHandler) {
	public := r.Group("/api")
	{
		public.GET("/setup/status", setup.Status)
		public.POST("/setup/initialize", setup.Initialize)
		public.POST("/auth/login", auth.Login)
		public.POST("/auth/refresh", auth.Refresh)
	}
}

// registerSessionRoutes mounts routes any signed-in principal may use. They
// still pass the gate, which requires no specific permission.
func registerSessionRoutes(api *gin.RouterGroup, auth *handlers.AuthHandler, checker middleware.Authorizer) {
	signedIn := middleware.RequirePermission(checker, "")
	api.GET("/auth/me", signedIn, auth.Me)
	api.POST("/auth/logout", signedIn, auth.Logout)
}

func registerDashboardRoutes(api *gin.RouterGroup, handler *handlers.DashboardHandler, checker middleware.Authorizer) {
	api.GET("/dashboard", middleware.RequirePermission(checker, ""), handler.Overview)
}
