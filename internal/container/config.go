// Package container provides dependency injection and lifecycle management
// for the expense approvals service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Server   ServerConfig
	Worker   WorkerConfig
	Workflow WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// StorageConfig holds receipt storage settings.
type StorageConfig struct {
	// Driver is "local" or "minio"
	Driver string

	Bucket         string
	MaxReceiptSize int64

	// LocalDir is the root directory of the local driver
	LocalDir string

	// PublicBaseURL prefixes public receipt URLs. For the local driver it
	// should point at the server's static prefix.
	PublicBaseURL string

	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// AuthConfig holds session settings.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	FeedHeartbeat   time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	ReconcileInterval time.Duration
	OrphanAge         time.Duration
	SessionPurge      time.Duration
}

// WorkflowConfig holds approval workflow settings.
type WorkflowConfig struct {
	MaxChainDepth int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/expenses.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:         StorageDriverLocal,
			Bucket:         "receipts",
			MaxReceiptSize: 5 << 20,
			LocalDir:       "data/objects",
			PublicBaseURL:  "http://localhost:8080/files",
			Region:         "us-east-1",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			FeedHeartbeat:   25 * time.Second,
		},
		Worker: WorkerConfig{
			ReconcileInterval: time.Hour,
			OrphanAge:         24 * time.Hour,
			SessionPurge:      time.Hour,
		},
		Workflow: WorkflowConfig{
			MaxChainDepth: 32,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case StorageDriverMinio:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required for the minio driver")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return fmt.Errorf("storage credentials are required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Worker.ReconcileInterval <= 0 || c.Worker.OrphanAge <= 0 {
		return fmt.Errorf("worker intervals must be positive")
	}

	return nil
}
