package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/internal/database"
	"github.com/charlesng35/adminhub/pkg/logger"
	"github.com/charlesng35/adminhub/pkg/response"
)

const healthCheckTimeout = 2 * time.Second

// Health reports readiness. An unreachable database answers 503; an
// unreachable cache only marks the service degraded. cacheStore may be nil.
func Health(db *gorm.DB, cacheStore cache.Pinger) gin.HandlerFunc {
	log := logger.WithModule("health")

	return func(c *gin.Context) {
		checkedAt := time.Now().UTC()
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			log.Warn("database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Success: false,
				Data:    gin.H{"status": "degraded", "database": "unavailable", "checked_at": checkedAt},
				Error:   &response.ErrorInfo{Code: "STORE_UNAVAILABLE", Message: "Database is unavailable"},
			})
			return
		}

		body := gin.H{"status": "ok", "database": "ok", "checked_at": checkedAt}
		if cacheStore != nil {
			if err := cacheStore.Ping(ctx); err != nil {
				log.Warn("cache ping failed", zap.Error(err))
				body["status"] = "degraded"
				body["cache"] = "unavailable"
			} else {
				body["cache"] = "ok"
			}
		}
		response.Success(c, http.StatusOK, body)
	}
}
