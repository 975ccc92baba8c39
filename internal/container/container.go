package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approvals/internal/infrastructure/worker"
	httpapi "github.com/garyjia/expense-approvals/internal/interfaces/http"
	"github.com/garyjia/expense-approvals/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Storage and credentials
	storage *StorageBundle
	auth    *AuthBundle

	// Application
	dispatcher dispatcher.Dispatcher
	feed       *feed.Manager
	workflow   workflow.Engine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Interface
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Companies   port.CompanyRepository
	Profiles    port.ProfileRepository
	Credentials port.CredentialRepository
	Sessions    port.SessionRepository
	Expenses    port.ExpenseRepository
	Approvals   port.ApprovalRepository
	Rules       port.RuleRepository
	Logs        port.DecisionLogRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Auth     service.AuthService
	Expenses service.ExpenseService
	Stats    service.StatsService
	Users    service.UserService
	Rules    service.RuleService
	Feed     service.FeedService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the workers.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Storage and credentials
// 3. Event dispatcher, feed manager and workflow engine
// 4. Application services
// 5. Workers
// 6. HTTP server (built, not listening; see Serve)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initStorageAndAuth(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized", zap.String("driver", c.config.Storage.Driver))

	c.dispatcher, c.feed = ProvideDispatcher(c.logger)
	c.workflow = ProvideWorkflowEngine(c.repositories, &c.config.Workflow, c.logger)
	c.logger.Info("Dispatcher and workflow engine initialized")

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Engine:     c.workflow,
		Dispatcher: c.dispatcher,
		Feed:       c.feed,
		Storage:    c.storage.Objects,
		Auth:       c.auth,
		Config:     c.config,
		Logger:     c.logger,
	})
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.repositories, c.storage.Objects, c.config, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		// individual failures are logged; the service runs without them
		c.logger.Error("Some workers failed to start", zap.Error(err))
	}
	c.logger.Info("Workers started", zap.Int("worker_count", c.workers.GetWorkerCount()))

	c.server = ProvideHTTPServer(c.config, c.services, c.storage.StaticDir, c.conn, c.logger)

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Serve runs the HTTP server until ctx is cancelled or the listener fails.
func (c *Container) Serve(ctx context.Context) error {
	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server == nil {
		return fmt.Errorf("container not started")
	}
	return server.Start(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.services != nil {
		c.services.Stats.Close()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.conn == nil:
		set("database", false, "not initialized")
	default:
		if err := c.conn.HealthCheck(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers != nil {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
	} else {
		set("workers", false, "not initialized")
	}

	if c.feed != nil {
		set("feed", true, fmt.Sprintf("subscriptions: %d", c.feed.SubscriptionCount()))
	} else {
		set("feed", false, "not initialized")
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initStorageAndAuth() error {
	bundle, err := ProvideStorage(c.ctx, &c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle

	authBundle, err := ProvideAuth(&c.config.Auth)
	if err != nil {
		return err
	}
	c.auth = authBundle
	return nil
}

func (c *Container) closeDatabase() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.conn = nil
	return err
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
