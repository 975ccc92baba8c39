package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.List(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, "List users", err)
		return
	}
	if users == nil {
		users = []*entity.Profile{}
	}
	h.respondOK(c, http.StatusOK, users)
}

// InviteUser handles POST /api/v1/users
func (h *Handlers) InviteUser(c *gin.Context) {
	var req service.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	profile, err := h.services.Users.Invite(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.respondError(c, "Invite user", err)
		return
	}
	h.respondOK(c, http.StatusCreated, profile)
}

// UpdateUser handles PATCH /api/v1/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	profile, err := h.services.Users.Update(c.Request.Context(), mustActor(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, "Update user", err)
		return
	}
	h.respondOK(c, http.StatusOK, profile)
}

// GetCompany handles GET /api/v1/company
func (h *Handlers) GetCompany(c *gin.Context) {
	company, err := h.services.Users.Company(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, "Get company", err)
		return
	}
	h.respondOK(c, http.StatusOK, company)
}

// UpdateCompany handles PATCH /api/v1/company
func (h *Handlers) UpdateCompany(c *gin.Context) {
	var req service.UpdateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	company, err := h.services.Users.UpdateCompany(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.respondError(c, "Update company", err)
		return
	}
	h.respondOK(c, http.StatusOK, company)
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.services.Rules.List(c.Request.Context(), mustActor(c))
	if err != nil {
		h.respondError(c, "List rules", err)
		return
	}
	if rules == nil {
		rules = []*entity.ApprovalRule{}
	}
	h.respondOK(c, http.StatusOK, rules)
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var req service.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "invalid request body")
		return
	}

	rule, err := h.services.Rules.Create(c.Request.Context(), mustActor(c), req)
	if err != nil {
		h.respondError(c, "Create rule", err)
		return
	}
	h.respondOK(c, http.StatusCreated, rule)
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.services.Rules.Delete(c.Request.Context(), mustActor(c), c.Param("id")); err != nil {
		h.respondError(c, "Delete rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}
