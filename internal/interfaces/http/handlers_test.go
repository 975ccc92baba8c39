package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/listing"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
	"github.com/garyjia/expense-approvals/internal/domain/stats"
)

const goodToken = "good-token"

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type fakeAuth struct {
	actor     policy.Actor
	signedOut string
	signInErr error
}

func (f *fakeAuth) SignUp(ctx context.Context, req service.SignUpRequest) (*service.Session, error) {
	return &service.Session{Token: "new", Profile: &entity.Profile{Email: req.Email}}, nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*service.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &service.Session{Token: goodToken}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, token string) error {
	f.signedOut = token
	return nil
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (policy.Actor, *entity.Profile, error) {
	if token != goodToken {
		return policy.Actor{}, nil, entity.ErrUnauthenticated
	}
	return f.actor, &entity.Profile{ID: f.actor.ID, CompanyID: f.actor.CompanyID}, nil
}

type fakeExpenses struct {
	service.ExpenseService
	submitted *service.SubmitRequest
	submitErr error
	getErr    error
	decide    func(req service.DecisionRequest) (*service.DecisionResult, error)
	pending   []*listing.QueueItem
}

func (f *fakeExpenses) Submit(ctx context.Context, actor policy.Actor, req service.SubmitRequest) (*entity.Expense, error) {
	f.submitted = &req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &entity.Expense{ID: "exp-1", EmployeeID: actor.ID, Amount: req.Amount, Status: entity.ExpenseStatusPending}, nil
}

func (f *fakeExpenses) GetByID(ctx context.Context, actor policy.Actor, id string) (*service.ExpenseDetail, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &service.ExpenseDetail{Expense: &entity.Expense{ID: id}}, nil
}

func (f *fakeExpenses) ListForScope(ctx context.Context, actor policy.Actor, scope feed.Scope, q listing.Query) ([]*entity.Expense, error) {
	return nil, nil
}

func (f *fakeExpenses) PendingApprovals(ctx context.Context, actor policy.Actor, q listing.Query) ([]*listing.QueueItem, error) {
	return f.pending, nil
}

func (f *fakeExpenses) ApplyDecision(ctx context.Context, actor policy.Actor, req service.DecisionRequest) (*service.DecisionResult, error) {
	return f.decide(req)
}

func (f *fakeExpenses) BulkDecide(ctx context.Context, actor policy.Actor, reqs []service.DecisionRequest) []service.BulkResult {
	results := make([]service.BulkResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := f.decide(req)
		results = append(results, service.BulkResult{ApprovalID: req.ApprovalID, Result: res, Err: err})
	}
	return results
}

type fakeStats struct {
	service.StatsService
	scope feed.Scope
}

func (f *fakeStats) Snapshot(ctx context.Context, actor policy.Actor, scope feed.Scope) (stats.Snapshot, error) {
	f.scope = scope
	return stats.Snapshot{}, nil
}

type fakeRules struct {
	service.RuleService
	deleteErr error
}

func (f *fakeRules) Delete(ctx context.Context, actor policy.Actor, ruleID string) error {
	return f.deleteErr
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

type testEnv struct {
	server   *Server
	auth     *fakeAuth
	expenses *fakeExpenses
	stats    *fakeStats
	rules    *fakeRules
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		auth: &fakeAuth{actor: policy.NewActor("user-1", "company-1", []entity.Role{entity.RoleManager})},
		expenses: &fakeExpenses{decide: func(req service.DecisionRequest) (*service.DecisionResult, error) {
			return &service.DecisionResult{Approval: &entity.Approval{ID: req.ApprovalID}}, nil
		}},
		stats: &fakeStats{},
		rules: &fakeRules{},
	}
	env.server = NewServer(DefaultServerConfig(), Services{
		Auth:     env.auth,
		Expenses: env.expenses,
		Stats:    env.stats,
		Rules:    env.rules,
		Health:   fakeHealth{},
	}, noopLogger{})
	return env
}

func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestClassify(t *testing.T) {
	verr := entity.NewValidationError()
	verr.Add("amount", "must be positive")

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation with fields", fmt.Errorf("submit: %w", verr), http.StatusUnprocessableEntity},
		{"bare validation", entity.ErrValidation, http.StatusUnprocessableEntity},
		{"no approver", entity.ErrNoApproverFound, http.StatusUnprocessableEntity},
		{"unauthenticated", entity.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("expense x: %w", entity.ErrForbidden), http.StatusForbidden},
		{"not found", entity.ErrNotFound, http.StatusNotFound},
		{"conflict", entity.ErrConflict, http.StatusConflict},
		{"invalid state", entity.ErrInvalidState, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := classify(tt.err)
			assert.Equal(t, tt.status, ae.Status)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, genericFailure, ae.Message)
			}
		})
	}

	assert.Equal(t, map[string]string{"amount": "must be positive"}, classify(verr).Fields)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	env.server.services.Health = fakeHealth{err: errors.New("closed")}
	env.server = NewServer(DefaultServerConfig(), env.server.services, noopLogger{})
	rec = env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/expenses", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, false, decode(t, rec)["success"])
	})

	t.Run("bad token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/expenses", nil, "forged")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("query token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/expenses?access_token="+goodToken, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty list renders as array", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/expenses", nil, goodToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []interface{}{}, decode(t, rec)["data"])
	})
}

func TestSignInFailure(t *testing.T) {
	env := newTestEnv(t)
	env.auth.signInErr = entity.ErrUnauthenticated

	rec := env.do(http.MethodPost, "/api/v1/auth/signin", SignInRequest{Email: "a@b.c", Password: "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignOutRevokesPresentedToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/v1/auth/signout", nil, goodToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, goodToken, env.auth.signedOut)
}

func TestSubmitExpenseJSON(t *testing.T) {
	t.Run("numeric amount", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodPost, "/api/v1/expenses", map[string]interface{}{
			"amount":       125.5,
			"currency":     "usd",
			"category":     "travel",
			"expense_date": "2026-03-01",
		}, goodToken)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NotNil(t, env.expenses.submitted)
		assert.True(t, env.expenses.submitted.Amount.Equal(decimal.RequireFromString("125.5")))
		assert.Equal(t, entity.Currency("USD"), env.expenses.submitted.Currency)
		assert.Equal(t, "2026-03-01", env.expenses.submitted.ExpenseDate.Format(entity.DateLayout))
	})

	t.Run("string amount", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodPost, "/api/v1/expenses", map[string]interface{}{
			"amount": "19.99", "currency": "EUR", "category": "meals",
		}, goodToken)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "19.99", env.expenses.submitted.Amount.String())
	})

	t.Run("unparseable fields", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodPost, "/api/v1/expenses", map[string]interface{}{
			"amount": "lots", "expense_date": "01/03/2026",
		}, goodToken)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		fields, ok := decode(t, rec)["fields"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, fields, "amount")
		assert.Contains(t, fields, "expense_date")
		assert.Nil(t, env.expenses.submitted)
	})

	t.Run("service rejection", func(t *testing.T) {
		env := newTestEnv(t)
		env.expenses.submitErr = entity.ErrNoApproverFound
		rec := env.do(http.MethodPost, "/api/v1/expenses", map[string]interface{}{
			"amount": 10, "currency": "USD", "category": "meals",
		}, goodToken)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestGetExpenseErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{entity.ErrNotFound, http.StatusNotFound},
		{entity.ErrForbidden, http.StatusForbidden},
		{errors.New("db gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			env := newTestEnv(t)
			env.expenses.getErr = tt.err
			rec := env.do(http.MethodGet, "/api/v1/expenses/exp-9", nil, goodToken)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "db gone")
			}
		})
	}
}

func TestDecide(t *testing.T) {
	env := newTestEnv(t)
	var got service.DecisionRequest
	env.expenses.decide = func(req service.DecisionRequest) (*service.DecisionResult, error) {
		got = req
		return &service.DecisionResult{Approval: &entity.Approval{ID: req.ApprovalID}}, nil
	}

	rec := env.do(http.MethodPost, "/api/v1/approvals/apr-7/decision",
		DecisionBody{Decision: entity.DecisionApproved, Comment: "ok"}, goodToken)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "apr-7", got.ApprovalID)
	assert.Equal(t, entity.DecisionApproved, got.Decision)
	assert.Equal(t, "ok", got.Comment)
}

func TestBulkDecide(t *testing.T) {
	env := newTestEnv(t)
	env.expenses.decide = func(req service.DecisionRequest) (*service.DecisionResult, error) {
		switch req.ApprovalID {
		case "stale":
			return nil, entity.ErrConflict
		case "other":
			return nil, entity.ErrForbidden
		}
		return &service.DecisionResult{Approval: &entity.Approval{ID: req.ApprovalID}}, nil
	}

	rec := env.do(http.MethodPost, "/api/v1/approvals/bulk", BulkDecisionRequest{Decisions: []service.DecisionRequest{
		{ApprovalID: "a1", Decision: entity.DecisionApproved},
		{ApprovalID: "stale", Decision: entity.DecisionApproved},
		{ApprovalID: "other", Decision: entity.DecisionRejected},
	}}, goodToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data BulkDecisionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Succeeded)
	assert.Equal(t, 2, resp.Data.Failed)
	require.Len(t, resp.Data.Results, 3)
	assert.True(t, resp.Data.Results[0].Success)
	assert.Equal(t, http.StatusConflict, resp.Data.Results[1].Status)
	assert.Equal(t, http.StatusForbidden, resp.Data.Results[2].Status)

	t.Run("empty batch", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/v1/approvals/bulk", BulkDecisionRequest{}, goodToken)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPendingApprovalsEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/v1/approvals/pending", nil, goodToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["data"])
}

func TestStatsPassesScope(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/v1/stats?employee_id=user-2", nil, goodToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", env.stats.scope.EmployeeID)
}

func TestDeleteRule(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodDelete, "/api/v1/rules/r1", nil, goodToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	env.rules.deleteErr = entity.ErrNotFound
	rec = env.do(http.MethodDelete, "/api/v1/rules/r1", nil, goodToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
