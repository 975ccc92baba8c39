package config

import (
	"github.com/garyjia/expense-approvals/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Storage: container.StorageConfig{
			Driver:          c.Storage.Driver,
			Bucket:          c.Storage.Bucket,
			MaxReceiptSize:  c.Storage.MaxReceiptSize,
			LocalDir:        c.Storage.LocalDir,
			PublicBaseURL:   c.Storage.PublicBaseURL,
			Endpoint:        c.Storage.Endpoint,
			AccessKeyID:     c.Storage.AccessKeyID,
			SecretAccessKey: c.Storage.SecretAccessKey,
			UseSSL:          c.Storage.UseSSL,
			Region:          c.Storage.Region,
		},
		Auth: container.AuthConfig{
			JWTSecret:  c.Auth.JWTSecret,
			TokenTTL:   c.Auth.TokenTTL,
			BcryptCost: c.Auth.BcryptCost,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			AllowedOrigins:  c.Server.AllowedOrigins,
			FeedHeartbeat:   c.Server.FeedHeartbeat,
		},
		Worker: container.WorkerConfig{
			ReconcileInterval: c.Worker.ReconcileInterval,
			OrphanAge:         c.Worker.OrphanAge,
			SessionPurge:      c.Worker.SessionPurgeInterval,
		},
		Workflow: container.WorkflowConfig{
			MaxChainDepth: c.Workflow.MaxChainDepth,
		},
	}
}
