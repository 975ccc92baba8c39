// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// AllowedOrigins configures CORS. Empty allows any origin.
	AllowedOrigins []string

	// StaticDir, when set, is served under StaticPrefix (local receipt storage)
	StaticDir    string
	StaticPrefix string

	MaxReceiptSize  int64
	FeedHeartbeat   time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // SSE streams outlive any fixed write deadline
		StaticPrefix:    "/files",
		MaxReceiptSize:  service.DefaultMaxReceiptSize,
		FeedHeartbeat:   25 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services bundles the application services the API exposes
type Services struct {
	Auth     service.AuthService
	Expenses service.ExpenseService
	Stats    service.StatsService
	Users    service.UserService
	Rules    service.RuleService
	Feed     service.FeedService
	Health   HealthChecker
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	// multipart bodies above this spill to temp files
	router.MaxMultipartMemory = config.MaxReceiptSize + 1<<20

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(s.config.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	s.router.Use(cors.New(corsConfig))
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		kv := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if actor, ok := actorFrom(c); ok {
			kv = append(kv, "user_id", actor.ID, "company_id", actor.CompanyID)
		}
		s.logger.Info("HTTP request", kv...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config, s.logger)

	s.router.GET("/health", h.HealthCheck)

	if s.config.StaticDir != "" {
		s.router.Static(s.config.StaticPrefix, s.config.StaticDir)
	}

	api := s.router.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/signin", h.SignIn)
	}

	protected := api.Group("")
	protected.Use(h.authMiddleware())
	{
		protected.POST("/auth/signout", h.SignOut)
		protected.GET("/auth/me", h.Me)

		protected.POST("/expenses", h.SubmitExpense)
		protected.GET("/expenses", h.ListExpenses)
		protected.GET("/expenses/export", h.ExportExpenses)
		protected.GET("/expenses/:id", h.GetExpense)
		protected.GET("/expenses/:id/receipt", h.GetReceiptURL)
		protected.POST("/expenses/:id/override", h.OverrideExpense)

		protected.GET("/approvals/pending", h.PendingApprovals)
		protected.POST("/approvals/bulk", h.BulkDecide)
		protected.POST("/approvals/:id/decision", h.Decide)

		protected.GET("/stats", h.Stats)
		protected.GET("/feed", h.Feed)

		protected.GET("/users", h.ListUsers)
		protected.POST("/users", h.InviteUser)
		protected.PATCH("/users/:id", h.UpdateUser)

		protected.GET("/company", h.GetCompany)
		protected.PATCH("/company", h.UpdateCompany)

		protected.GET("/rules", h.ListRules)
		protected.POST("/rules", h.CreateRule)
		protected.DELETE("/rules/:id", h.DeleteRule)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
