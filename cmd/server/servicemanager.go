package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/document"
	"github.com/waterreg/registry-server/internal/form"
	"github.com/waterreg/registry-server/internal/history"
	"github.com/waterreg/registry-server/internal/notification"
	"github.com/waterreg/registry-server/internal/request"
	"github.com/waterreg/registry-server/internal/system/blob"
	"github.com/waterreg/registry-server/internal/system/config"
	"github.com/waterreg/registry-server/internal/system/database"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	"github.com/waterreg/registry-server/internal/system/executor"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/middleware"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/user"
)

// services holds everything built at startup that needs cleanup at shutdown.
type services struct {
	registry *stores.StoreRegistry
	users    user.UserService
	forms    form.FormService
	requests request.RequestService
	pipeline *document.Pipeline
	notifier notification.Notifier
	pool     *executor.Pool
}

// openDatabase connects to the registry database and initializes the shared provider.
func openDatabase(cfg *config.Config) (provider.DBClientInterface, error) {
	db, err := database.Initialize(&cfg.Database.Registry)
	if err != nil {
		return nil, err
	}
	provider.InitDBProvider(db)
	return provider.GetDBProvider().GetRegistryDBClient()
}

// buildPipeline wires object storage, the job tracker and the tools service into the document pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config, exec executor.Executor) (*document.Pipeline, error) {
	blobs, err := blob.NewMinioStore(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}

	var tracker document.JobTracker
	if cfg.Redis.Addr != "" {
		tracker = document.NewRedisJobTracker(document.NewRedisClient(cfg.Redis), cfg.Documents.JobTTL)
	} else {
		log.GetLogger().Warn("Redis is not configured, document jobs are tracked in memory")
		tracker = document.NewMemoryJobTracker()
	}

	renderer := document.NewToolsClient(cfg.Hosts.Tools, cfg.Documents.ToolsTimeout)
	return document.NewPipeline(document.Config{
		Queue: document.Options{
			Attempts:    cfg.Documents.Attempts,
			Backoff:     document.Backoff{Type: cfg.Documents.BackoffType, Delay: cfg.Documents.BackoffDelay},
			Concurrency: cfg.Documents.Concurrency,
		},
		MapsHost:         cfg.Hosts.Maps,
		ScreenshotMaxAge: cfg.Documents.ScreenshotMaxAge,
	}, blobs, renderer, tracker, exec), nil
}

// registerServices builds all modules and mounts their routes. exec runs
// background work; router may be nil when no HTTP surface is needed.
func registerServices(ctx context.Context, cfg *config.Config, router *gin.Engine, exec executor.Executor) (*services, error) {
	logger := log.GetLogger()

	dbClient, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry := stores.NewStoreRegistry(
		dbClient,
		form.NewStore(dbClient),
		request.NewStore(dbClient),
		history.NewStore(dbClient),
		user.NewStore(dbClient),
	)

	svc := &services{registry: registry}
	svc.users = user.Initialize(registry)
	historyService := history.Initialize(registry)
	historyListener := history.NewListener(historyService)

	svc.notifier = notification.NewNotifier(cfg)
	dispatcher := notification.NewDispatcher(notification.NewRules(cfg), svc.users, svc.notifier, exec)
	logger.Info("Notification dispatcher initialized", log.Bool("production", cfg.IsProduction()))

	svc.pipeline, err = buildPipeline(ctx, cfg, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document pipeline: %w", err)
	}

	var api, public *gin.RouterGroup
	if router != nil {
		router.GET("/health", healthHandler(registry))
		public = router.Group("/public")
		api = router.Group("/api/v1")
		api.Use(middleware.ActorAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer, svc.users))
	}

	svc.forms = form.Initialize(api, registry, svc.users, historyService, dispatcher, historyListener, dispatcher)
	logger.Info("Form module initialized")

	svc.requests = request.Initialize(api, public, registry, historyService, svc.pipeline,
		historyListener, dispatcher, document.NewListener(svc.pipeline))
	logger.Info("Request module initialized")

	return svc, nil
}

func healthHandler(registry *stores.StoreRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := registry.DBClient().Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// unregisterServices drains background work and closes connections.
func unregisterServices(ctx context.Context, svc *services) {
	logger := log.GetLogger()
	if svc == nil {
		return
	}
	if svc.pool != nil {
		if err := svc.pool.Shutdown(ctx); err != nil {
			logger.Warn("Background tasks did not finish", log.Error(err))
		}
	}
	if closer, ok := svc.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close notifier", log.Error(err))
		}
	}
	if err := provider.GetDBProviderCloser().Close(); err != nil {
		logger.Warn("Failed to close database", log.Error(err))
	}
}
