package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/listing"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	config   ServerConfig
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, config ServerConfig, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		config:   config,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Database  string `json:"database,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	status := http.StatusOK
	if h.services.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.services.Health.HealthCheck(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// listQuery reads the presentation filters shared by list endpoints
func listQuery(c *gin.Context) listing.Query {
	return listing.Query{
		Category: entity.Category(c.Query("category")),
		Status:   entity.ExpenseStatus(c.Query("status")),
		Search:   c.Query("q"),
		SortBy:   listing.SortField(c.Query("sort")),
		Order:    listing.Order(c.Query("order")),
	}
}

// scopeQuery reads the requested expense scope; the service narrows it
func scopeQuery(c *gin.Context) feed.Scope {
	return feed.Scope{
		EmployeeID: c.Query("employee_id"),
		ManagerID:  c.Query("manager_id"),
	}
}

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *Handlers) SignUp(c *gin.Context) {
	var req service.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	session, err := h.services.Auth.SignUp(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Sign up", err)
		return
	}
	h.respondOK(c, http.StatusCreated, session)
}

// SignIn handles POST /api/v1/auth/signin
func (h *Handlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	session, err := h.services.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, "Sign in", err)
		return
	}
	h.respondOK(c, http.StatusOK, session)
}

// SignOut handles POST /api/v1/auth/signout
func (h *Handlers) SignOut(c *gin.Context) {
	if err := h.services.Auth.SignOut(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		h.respondError(c, "Sign out", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	h.respondOK(c, http.StatusOK, profileFrom(c))
}
