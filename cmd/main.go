// Package main provides the entry point for the FlowTube stream resolution service.
// @title FlowTube Stream Resolution API
// @version 1.0
// @description A Go-based microservice that resolves watch URLs into playable streams, selects tracks by quality and merges adaptive audio/video for playback.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key authentication

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/flowtube/flowtube/docs" // Import for swagger docs
	"github.com/flowtube/flowtube/internal/api/handlers"
	"github.com/flowtube/flowtube/internal/api/router"
	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/database"
	"github.com/flowtube/flowtube/internal/services/downloader"
	"github.com/flowtube/flowtube/internal/services/extractor"
	"github.com/flowtube/flowtube/internal/services/infocache"
	"github.com/flowtube/flowtube/internal/services/player"
	"github.com/flowtube/flowtube/internal/services/selector"
	"github.com/flowtube/flowtube/internal/services/storage"
	"github.com/flowtube/flowtube/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.Info("Starting FlowTube stream resolution service")

	// Initialize database
	db, err := database.NewMongoDB(&cfg.MongoDB)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	// Initialize S3 storage
	s3Storage, err := storage.NewStorage(&cfg.S3)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize extraction cache, with an optional Redis tier
	memCache := infocache.NewMemoryCache(cfg.Cache.MaxEntries)
	var cache infocache.InfoCache = memCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		tiered, err := infocache.NewTieredCache(memCache, client)
		if err != nil {
			logger.Warnf("Redis unavailable, falling back to memory cache: %v", err)
		} else {
			logger.Infof("Redis cache tier enabled at %s", cfg.Redis.Addr)
			cache = tiered
		}
	}

	// Initialize extraction and selection services
	extractorClient := extractor.NewClient(&cfg.Extractor)
	streamSelector := selector.New(cfg.Extractor.PreferredVideoContainer, cfg.Extractor.PreferredAudioContainer)
	fetcher := downloader.NewFetcher(extractorClient, streamSelector, &cfg.Playback)

	// Initialize playback manager
	playerManager := player.NewManager(db, s3Storage, extractorClient, cache, fetcher, streamSelector, &cfg.Playback, &cfg.Cache)

	// Initialize handlers
	streamHandler := handlers.NewStreamHandler(playerManager)
	sessionHandler := handlers.NewSessionHandler(playerManager)
	mediaHandler := handlers.NewMediaHandler(playerManager, s3Storage)
	cacheHandler := handlers.NewCacheHandler(cache, cfg.Cache.MaxEntries)
	healthHandler := handlers.NewHealthHandler(db, s3Storage)

	// Initialize router
	r := router.NewRouter(cfg, streamHandler, sessionHandler, mediaHandler, cacheHandler, healthHandler)

	// Start server
	go func() {
		logger.Infof("Starting server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := r.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests
	if err := r.Shutdown(ctx); err != nil {
		logger.Errorf("Failed to shut down HTTP server: %v", err)
	}

	// Wait for in-flight playback sessions
	if err := playerManager.Close(ctx); err != nil {
		logger.Errorf("Failed to drain playback sessions: %v", err)
	}

	// Close database connection
	if err := db.Close(ctx); err != nil {
		logger.Errorf("Failed to close database connection: %v", err)
	}

	logger.Info("Server shutdown complete")
}
