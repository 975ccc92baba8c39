package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/config"
	"github.com/garyjia/expense-approvals/internal/container"
	httpapi "github.com/garyjia/expense-approvals/internal/interfaces/http"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting expense approvals service",
		zap.String("version", httpapi.Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_driver", cfg.Storage.Driver))

	if err := run(cfg, logger); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Cancelled on SIGINT/SIGTERM; the HTTP server and workers drain on it
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}

	if err := c.Start(ctx); err != nil {
		return err
	}

	serveErr := c.Serve(ctx)

	logger.Info("Shutting down...")
	if err := c.Close(); err != nil {
		logger.Error("Shutdown completed with errors", zap.Error(err))
	}
	return serveErr
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
