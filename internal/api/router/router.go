package router

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/flowtube/flowtube/internal/api/handlers"
	"github.com/flowtube/flowtube/internal/api/middleware"
	"github.com/flowtube/flowtube/internal/config"
)

type Router struct {
	engine *gin.Engine
	server *http.Server
	config *config.Config
}

func NewRouter(cfg *config.Config, streamHandler *handlers.StreamHandler, sessionHandler *handlers.SessionHandler, mediaHandler *handlers.MediaHandler, cacheHandler *handlers.CacheHandler, healthHandler *handlers.HealthHandler) *Router {
	// Set Gin mode
	if cfg.Server.Host == "0.0.0.0" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Add middleware
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationIDMiddleware())
	if cfg.CORS.Enabled {
		engine.Use(middleware.CORSMiddleware(&cfg.CORS))
	}

	// Health endpoints (no auth required)
	health := engine.Group("/")
	{
		health.GET("/health", healthHandler.Health)
		health.GET("/ready", healthHandler.Readiness)
		health.GET("/live", healthHandler.Liveness)
	}

	// Swagger documentation (no auth required)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API endpoints with authentication and rate limiting
	api := engine.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(&cfg.API))
	api.Use(middleware.RateLimitMiddleware(&cfg.API))
	{
		// Stream resolution endpoints
		stream := api.Group("/stream")
		{
			stream.POST("/resolve", streamHandler.Resolve) // /api/v1/stream/resolve
			stream.POST("/play", streamHandler.Play)       // /api/v1/stream/play
		}

		// Playback session endpoints
		session := api.Group("/session")
		{
			session.GET("/list", sessionHandler.List)             // /api/v1/session/list
			session.GET("/info/:session_id", sessionHandler.Info) // /api/v1/session/info/{session_id}
			session.DELETE("/:session_id", sessionHandler.Cancel) // /api/v1/session/{session_id}
		}

		// Artifact endpoints
		media := api.Group("/media")
		{
			media.POST("/get", mediaHandler.GetMedia)          // /api/v1/media/get
			media.POST("/getDirect", mediaHandler.GetMediaURI) // /api/v1/media/getDirect
		}

		// Cache administration
		cache := api.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.Stats)            // /api/v1/cache/stats
			cache.POST("/invalidate", cacheHandler.Invalidate) // /api/v1/cache/invalidate
		}

		// Restricted content mode
		api.PUT("/service/restricted", cacheHandler.SetRestrictedMode) // /api/v1/service/restricted
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	return &Router{
		engine: engine,
		server: server,
		config: cfg,
	}
}

func (r *Router) Start() error {
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}
