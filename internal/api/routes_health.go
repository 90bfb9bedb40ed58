package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/app"
	"github.com/charlesng35/adminhub/internal/cache"
	"github.com/charlesng35/adminhub/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, store cache.Store) {
	var pinger cache.Pinger
	if p, ok := store.(cache.Pinger); ok {
		pinger = p
	}
	health := handlers.Health(db, pinger)
	r.GET("/health", health)
	r.GET("/api/health", health)
}

func registerMetricsRoutes(r *gin.Engine, cfg app.PrometheusConfig) {
	if !cfg.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
