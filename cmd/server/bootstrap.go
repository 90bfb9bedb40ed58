package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/api"
	"github.com/charlesng35/adminhub/internal/app"
	"github.com/charlesng35/adminhub/internal/app/maintenance"
	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/internal/database"
	"github.com/charlesng35/adminhub/internal/middleware"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	Store      cache.Store
	SessionSvc *iauth.SessionService
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return nil, errors.New("auth.jwt.secret must be configured")
	}

	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if !cfg.Server.GinDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	stack.openCache(ctx, cfg.Cache, log)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = iauth.NewSessionCache(stack.Store)
	if stack.SessionSvc, err = iauth.NewSessionService(stack.DB, jwtSvc, sessionCfg); err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}
	if live, err := stack.SessionSvc.SyncActiveGauge(ctx); err != nil {
		log.Warn("count active sessions", zap.Error(err))
	} else {
		log.Info("sessions restored", zap.Int64("active", live))
	}

	if cfg.Maintenance.Enabled {
		if err := stack.startMaintenance(cfg.Maintenance); err != nil {
			return nil, err
		}
	}

	stack.RateStore = middleware.NewRateStore(stack.Store)

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		JWT:       jwtSvc,
		Sessions:  stack.SessionSvc,
		RateStore: stack.RateStore,
		Cache:     stack.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// openCache prefers Redis when configured and reachable, and otherwise keeps
// the database-backed store.
func (s *runtimeStack) openCache(ctx context.Context, cfg app.CacheConfig, log *zap.Logger) {
	s.Store = cache.NewDatabaseStore(s.DB)
	if !cfg.UsesRedis() {
		return
	}

	redisStore, err := cache.NewRedisStore(ctx, cfg.RedisClientConfig())
	if err != nil {
		log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		return
	}
	s.Redis = redisStore
	s.Store = redisStore
	log.Info("redis connected", zap.String("addr", cfg.Redis.Address))
}

func (s *runtimeStack) startMaintenance(cfg app.MaintenanceConfig) error {
	// Redis expires its own keys; only the database store needs sweeping.
	var purger maintenance.CachePurger
	if dbStore, ok := s.Store.(*cache.DatabaseStore); ok {
		purger = dbStore
	}

	s.Cleaner = maintenance.NewCleaner(s.SessionSvc, purger,
		maintenance.WithSessionSchedule(cfg.SessionSchedule),
		maintenance.WithCacheSchedule(cfg.CacheSchedule),
		maintenance.WithJobTimeout(cfg.JobTimeout),
	)
	if err := s.Cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	return nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Cleaner = nil
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := dbCfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	log.Info("database connected", zap.String("driver", driver))

	return db, nil
}
