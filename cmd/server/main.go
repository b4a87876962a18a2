package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/waterreg/registry-server/internal/system/config"
	"github.com/waterreg/registry-server/internal/system/executor"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/middleware"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "registry-server",
	Short:         "Water body registry API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate-pdf <request-id>",
	Short: "Generate the PDF of an approved request synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return regenerate(cmd.Context(), args[0])
	},
}

func init() {
	// Priority: --config > CONFIG_PATH env var > repository/conf/deployment.yaml
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to deployment.yaml")
	rootCmd.AddCommand(serveCmd, regenerateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.GetLogger()
	logger.Info("Starting registry server...",
		log.String("version", version),
		log.String("build_date", buildDate),
		log.String("environment", cfg.Environment))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationIDMiddleware(), middleware.CORSMiddleware(cfg.CORS))

	pool := executor.NewPool(cfg.Documents.ExecutorWorkers)
	svc, err := registerServices(ctx, cfg, router, pool)
	if err != nil {
		return err
	}
	svc.pool = pool

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server...", log.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		unregisterServices(context.Background(), svc)
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", log.Error(err))
	}
	unregisterServices(shutdownCtx, svc)

	logger.Info("Server exited gracefully")
	return nil
}

func regenerate(ctx context.Context, id string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, err := registerServices(ctx, cfg, nil, executor.Inline{})
	if err != nil {
		return err
	}
	defer unregisterServices(context.Background(), svc)

	url, err := svc.pipeline.RegenerateNow(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to generate document for request %s: %w", id, err)
	}
	log.GetLogger().Info("Document generated", log.String("request_id", id), log.String("url", url))
	return nil
}
