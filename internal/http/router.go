package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/guttosm/dashwatch/internal/metrics"
	"github.com/guttosm/dashwatch/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds router configuration options.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter creates and configures the Gin router for the debug server.
func NewRouter(debugHandler *DebugHandler, healthHandler *HealthHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	configureGlobalMiddleware(router, &cfg)

	healthHandler.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	debugHandler.Register(router)

	return router
}

// configureGlobalMiddleware sets up middleware applied to all routes.
func configureGlobalMiddleware(router *gin.Engine, cfg *RouterConfig) {
	allowedOrigins := cfg.CORSOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	corsConfig := cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Encoding", "Cache-Control", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        86400,
	}
	router.Use(cors.New(corsConfig))

	router.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.Compression(),
		middleware.RequestLogger(),
	)
}
