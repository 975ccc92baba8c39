package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. EXPENSES_SERVER_PORT
const EnvPrefix = "EXPENSES"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	FeedHeartbeat   time.Duration `mapstructure:"feed_heartbeat"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	MigrationsDir   string        `mapstructure:"migrations_dir"` // empty uses the embedded set
}

// StorageConfig holds receipt storage configuration
type StorageConfig struct {
	Driver          string `mapstructure:"driver"` // local or minio
	Bucket          string `mapstructure:"bucket"`
	MaxReceiptSize  int64  `mapstructure:"max_receipt_size"`
	LocalDir        string `mapstructure:"local_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// AuthConfig holds session configuration
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	ReconcileInterval    time.Duration `mapstructure:"reconcile_interval"`
	OrphanAge            time.Duration `mapstructure:"orphan_age"`
	SessionPurgeInterval time.Duration `mapstructure:"session_purge_interval"`
}

// WorkflowConfig holds approval workflow configuration
type WorkflowConfig struct {
	MaxChainDepth int `mapstructure:"max_chain_depth"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory and environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path without overriding ones already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.feed_heartbeat", 25*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "")

	// Storage defaults
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.bucket", "receipts")
	v.SetDefault("storage.max_receipt_size", 5<<20)
	v.SetDefault("storage.local_dir", "data/objects")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/files")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "us-east-1")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Worker defaults
	v.SetDefault("worker.reconcile_interval", time.Hour)
	v.SetDefault("worker.orphan_age", 24*time.Hour)
	v.SetDefault("worker.session_purge_interval", time.Hour)

	// Workflow defaults
	v.SetDefault("workflow.max_chain_depth", 32)
}

// bindEnvVars binds the conventional unprefixed names of secrets
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"auth.jwt_secret":           {"EXPENSES_AUTH_JWT_SECRET", "JWT_SECRET"},
		"storage.access_key_id":     {"EXPENSES_STORAGE_ACCESS_KEY_ID", "MINIO_ACCESS_KEY"},
		"storage.secret_access_key": {"EXPENSES_STORAGE_SECRET_ACCESS_KEY", "MINIO_SECRET_KEY"},
		"server.port":               {"EXPENSES_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("storage.driver must be local or minio, got %q", c.Storage.Driver)
	}

	if c.Storage.MaxReceiptSize <= 0 {
		return fmt.Errorf("storage.max_receipt_size must be positive")
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console")
	}

	return nil
}
