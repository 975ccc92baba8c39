package container

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/infrastructure/auth"
	"github.com/garyjia/expense-approvals/internal/infrastructure/export"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approvals/internal/infrastructure/storage"
	"github.com/garyjia/expense-approvals/internal/infrastructure/worker"
	httpapi "github.com/garyjia/expense-approvals/internal/interfaces/http"
	"github.com/garyjia/expense-approvals/migrations"
	"github.com/garyjia/expense-approvals/pkg/database"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds the receipt store and, for the local driver, the
// directory the HTTP server exposes.
type StorageBundle struct {
	Objects   port.ObjectStorage
	StaticDir string
}

// AuthBundle holds the credential primitives.
type AuthBundle struct {
	Tokens port.TokenIssuer
	Hasher port.PasswordHasher
}

// ProvideDatabase opens the database and applies pending migrations.
// Embedded migrations are used unless cfg.MigrationsDir is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on the shared transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Companies:   repository.NewCompanyRepository(db, logger),
		Profiles:    repository.NewProfileRepository(db, logger),
		Credentials: repository.NewCredentialRepository(db, logger),
		Sessions:    repository.NewSessionRepository(db, logger),
		Expenses:    repository.NewExpenseRepository(db, logger),
		Approvals:   repository.NewApprovalRepository(db, logger),
		Rules:       repository.NewRuleRepository(db, logger),
		Logs:        repository.NewDecisionLogRepository(db, logger),
	}, nil
}

// ProvideStorage creates the receipt store for the configured driver.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	switch cfg.Driver {
	case StorageDriverLocal, "":
		if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return &StorageBundle{
			Objects:   storage.NewLocalObjectStorage(cfg.LocalDir, cfg.PublicBaseURL, logger),
			StaticDir: cfg.LocalDir,
		}, nil

	case StorageDriverMinio:
		objects, err := storage.NewMinioObjectStorage(storage.MinioConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			Region:          cfg.Region,
			PublicBaseURL:   cfg.PublicBaseURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := objects.EnsureBucket(ctx, cfg.Bucket); err != nil {
			return nil, err
		}
		return &StorageBundle{Objects: objects}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideAuth creates the token issuer and password hasher.
func ProvideAuth(cfg *AuthConfig) (*AuthBundle, error) {
	issuer, err := auth.NewJWTIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthBundle{
		Tokens: issuer,
		Hasher: auth.NewBcryptHasher(cfg.BcryptCost),
	}, nil
}

// ProvideDispatcher creates the event dispatcher and the feed manager
// subscribed to it.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, *feed.Manager) {
	kv := utils.NewKVLogger(logger.Named("events"))
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	return disp, feed.NewManager(disp, kv)
}

// ProvideWorkflowEngine creates the approval workflow engine.
func ProvideWorkflowEngine(repos *RepositoryBundle, cfg *WorkflowConfig, logger *zap.Logger) workflow.Engine {
	return workflow.NewEngine(
		repos.Profiles,
		repos.Rules,
		repos.Approvals,
		repos.Logs,
		workflow.WithLogger(utils.NewKVLogger(logger.Named("workflow"))),
		workflow.WithMaxChainDepth(cfg.MaxChainDepth),
	)
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Engine     workflow.Engine
	Dispatcher dispatcher.Dispatcher
	Feed       *feed.Manager
	Storage    port.ObjectStorage
	Auth       *AuthBundle
	Config     *Config
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	logger := utils.NewKVLogger(deps.Logger.Named("service"))
	repos := deps.Repos

	return &ServiceBundle{
		Auth: service.NewAuthService(service.AuthDeps{
			Companies:   repos.Companies,
			Profiles:    repos.Profiles,
			Credentials: repos.Credentials,
			Sessions:    repos.Sessions,
			Hasher:      deps.Auth.Hasher,
			Tokens:      deps.Auth.Tokens,
			TxManager:   deps.TxManager,
		}, logger),
		Expenses: service.NewExpenseService(service.ExpenseDeps{
			Companies:  repos.Companies,
			Profiles:   repos.Profiles,
			Expenses:   repos.Expenses,
			Approvals:  repos.Approvals,
			Logs:       repos.Logs,
			TxManager:  deps.TxManager,
			Engine:     deps.Engine,
			Storage:    deps.Storage,
			Exporter:   export.NewExcelExporter(deps.Logger),
			Dispatcher: deps.Dispatcher,
		}, service.ReceiptConfig{
			Bucket:  deps.Config.Storage.Bucket,
			MaxSize: deps.Config.Storage.MaxReceiptSize,
		}, logger),
		Stats: service.NewStatsService(repos.Companies, repos.Expenses, deps.Feed, logger),
		Users: service.NewUserService(service.UserDeps{
			Companies:   repos.Companies,
			Profiles:    repos.Profiles,
			Credentials: repos.Credentials,
			Hasher:      deps.Auth.Hasher,
			TxManager:   deps.TxManager,
		}, deps.Config.Workflow.MaxChainDepth, logger),
		Rules: service.NewRuleService(repos.Rules, repos.Profiles, logger),
		Feed:  service.NewFeedService(deps.Feed, service.DefaultFeedBuffer, logger),
	}, nil
}

// ProvideWorkers creates the background workers.
func ProvideWorkers(repos *RepositoryBundle, objects port.ObjectStorage, cfg *Config, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	manager.Register(worker.NewReceiptReconciler(worker.ReceiptReconcilerConfig{
		Bucket:    cfg.Storage.Bucket,
		Interval:  cfg.Worker.ReconcileInterval,
		OrphanAge: cfg.Worker.OrphanAge,
	}, objects, repos.Expenses, logger))
	if cfg.Worker.SessionPurge > 0 {
		manager.Register(worker.NewSessionPurger(cfg.Worker.SessionPurge, repos.Sessions, logger))
	}
	return manager
}

// ProvideHTTPServer creates the HTTP API server.
func ProvideHTTPServer(cfg *Config, services *ServiceBundle, staticDir string, health httpapi.HealthChecker, logger *zap.Logger) *httpapi.Server {
	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.StaticDir = staticDir
	serverCfg.MaxReceiptSize = cfg.Storage.MaxReceiptSize
	if cfg.Server.FeedHeartbeat > 0 {
		serverCfg.FeedHeartbeat = cfg.Server.FeedHeartbeat
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}

	return httpapi.NewServer(serverCfg, httpapi.Services{
		Auth:     services.Auth,
		Expenses: services.Expenses,
		Stats:    services.Stats,
		Users:    services.Users,
		Rules:    services.Rules,
		Feed:     services.Feed,
		Health:   health,
	}, utils.NewKVLogger(logger.Named("http")))
}
