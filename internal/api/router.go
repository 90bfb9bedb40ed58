package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/app"
	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/internal/handlers"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/permissions"
	"github.com/charlesng35/adminhub/internal/services"
	"github.com/charlesng35/adminhub/pkg/crypto"
)

// Dependencies groups the collaborators the router wires into handlers.
type Dependencies struct {
	DB        *gorm.DB
	Config    *app.Config
	JWT       *iauth.JWTService
	Sessions  *iauth.SessionService
	RateStore middleware.RateStore
	// Cache is pinged by the health endpoint when set.
	Cache cache.Store
	// Hasher defaults to crypto.DefaultHasher.
	Hasher crypto.Hasher
}

// NewRouter builds the Gin engine, wires middleware and registers every API route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	cfg := deps.Config
	hasher := deps.Hasher
	if hasher == nil {
		hasher = crypto.DefaultHasher
	}

	audit, err := services.NewAuditService(deps.DB)
	if err != nil {
		return nil, err
	}
	principals, err := services.NewPrincipalService(deps.DB, audit, hasher)
	if err != nil {
		return nil, err
	}
	roles, err := services.NewRoleService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	perms, err := services.NewPermissionService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	dashboard, err := services.NewDashboardService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	setup, err := services.NewSetupService(deps.DB, principals, audit)
	if err != nil {
		return nil, err
	}
	checker, err := permissions.NewChecker(deps.DB)
	if err != nil {
		return nil, err
	}
	localCfg := cfg.Auth.LocalAuthConfig()
	localCfg.Hasher = hasher
	authenticator, err := iauth.NewAuthenticator(deps.DB, principals, localCfg)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.AuditReport())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		SSLRedirect:  cfg.Server.Security.SSLRedirect,
		HSTSSeconds:  cfg.Server.Security.HSTSSeconds,
		AllowedHosts: cfg.Server.Security.AllowedHosts,
		IsDev:        cfg.Server.GinDebug,
	}))
	if cfg.RateLimit.Enabled && deps.RateStore != nil {
		window := cfg.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, window))
	}

	registerHealthRoutes(r, deps.DB, deps.Cache)
	registerMetricsRoutes(r, cfg.Monitoring.Prometheus)
	authHandler := handlers.NewAuthHandler(authenticator, deps.Sessions, principals, checker, audit)
	registerPublicRoutes(r, handlers.NewSetupHandler(setup), authHandler)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT, deps.Sessions, principals))

	registerSessionRoutes(api, authHandler, checker)
	registerDashboardRoutes(api, handlers.NewDashboardHandler(dashboard), checker)
	registerPrincipalRoutes(api, handlers.NewPrincipalHandler(principals, roles, audit, deps.Sessions), checker)
	registerRoleRoutes(api, handlers.NewRoleHandler(roles), checker)
	registerPermissionRoutes(api, handlers.NewPermissionHandler(perms, checker), checker)
	registerAuditRoutes(api, handlers.NewAuditHandler(audit), checker)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
