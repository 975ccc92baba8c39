package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/internal/domain/listing"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

const (
	maxDescriptionLength = 1000
	maxCommentLength     = 1000
)

// ExpenseService is the expense entity manager
type ExpenseService interface {
	Submit(ctx context.Context, actor policy.Actor, req SubmitRequest) (*entity.Expense, error)
	GetByID(ctx context.Context, actor policy.Actor, id string) (*ExpenseDetail, error)
	ListForScope(ctx context.Context, actor policy.Actor, scope feed.Scope, q listing.Query) ([]*entity.Expense, error)
	ApplyDecision(ctx context.Context, actor policy.Actor, req DecisionRequest) (*DecisionResult, error)
	BulkDecide(ctx context.Context, actor policy.Actor, reqs []DecisionRequest) []BulkResult
	Override(ctx context.Context, actor policy.Actor, req OverrideRequest) (*entity.Expense, error)
	PendingApprovals(ctx context.Context, actor policy.Actor, q listing.Query) ([]*listing.QueueItem, error)
	ReceiptURL(ctx context.Context, actor policy.Actor, expenseID string) (string, error)
	Export(ctx context.Context, actor policy.Actor, scope feed.Scope, q listing.Query) (*ExportResult, error)
}

// SubmitRequest carries a new expense claim
type SubmitRequest struct {
	Amount      decimal.Decimal
	Currency    entity.Currency
	Category    entity.Category
	ExpenseDate time.Time
	Description string
	Receipt     *ReceiptUpload
}

// ExpenseDetail is an expense with its approvals and audit trail
type ExpenseDetail struct {
	Expense   *entity.Expense       `json:"expense"`
	Approvals []*entity.Approval    `json:"approvals"`
	History   []*entity.DecisionLog `json:"history"`
}

// DecisionRequest is one approver decision
type DecisionRequest struct {
	ApprovalID string          `json:"approval_id"`
	Decision   entity.Decision `json:"decision"`
	Comment    string          `json:"comment"`
}

// DecisionResult is the state after a decision was applied
type DecisionResult struct {
	Expense  *entity.Expense    `json:"expense"`
	Approval *entity.Approval   `json:"approval"`
	Closed   []*entity.Approval `json:"closed,omitempty"`
}

// BulkResult is the per-item result of a bulk decision
type BulkResult struct {
	ApprovalID string          `json:"approval_id"`
	Result     *DecisionResult `json:"result,omitempty"`
	Err        error           `json:"-"`
}

// OverrideRequest forces the status of a pending expense
type OverrideRequest struct {
	ExpenseID string
	Status    entity.ExpenseStatus
	Comment   string
}

// ExportResult is a rendered expense export
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExpenseDeps groups the collaborators of the expense service
type ExpenseDeps struct {
	Companies  port.CompanyRepository
	Profiles   port.ProfileRepository
	Expenses   port.ExpenseRepository
	Approvals  port.ApprovalRepository
	Logs       port.DecisionLogRepository
	TxManager  port.TransactionManager
	Engine     workflow.Engine
	Storage    port.ObjectStorage
	Exporter   port.ExpenseExporter
	Dispatcher dispatcher.Dispatcher
}

type expenseServiceImpl struct {
	deps    ExpenseDeps
	receipt ReceiptConfig
	events  publisher
	logger  Logger
	now     func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(deps ExpenseDeps, receipt ReceiptConfig, logger Logger) ExpenseService {
	return &expenseServiceImpl{
		deps:    deps,
		receipt: receipt,
		events:  publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and persists a new expense with its approvals. The receipt
// is uploaded first; nothing is written when validation, upload or approver
// resolution fails.
func (s *expenseServiceImpl) Submit(ctx context.Context, actor policy.Actor, req SubmitRequest) (*entity.Expense, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	if !policy.CanSubmitExpense(actor) {
		return nil, fmt.Errorf("submit expense: %w", entity.ErrForbidden)
	}

	now := s.now()
	verr := entity.NewValidationError()
	if !req.Amount.IsPositive() {
		verr.Add("amount", "must be greater than zero")
	}
	if !req.Currency.IsValid() {
		verr.Add("currency", "unsupported currency")
	}
	if !req.Category.IsValid() {
		verr.Add("category", "unknown category")
	}
	if req.ExpenseDate.IsZero() {
		verr.Add("expense_date", "is required")
	} else if dateOnly(req.ExpenseDate).After(dateOnly(now)) {
		verr.Add("expense_date", "cannot be in the future")
	}
	if len(req.Description) > maxDescriptionLength {
		verr.Add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	var contentType string
	if req.Receipt != nil {
		contentType = validateReceipt(req.Receipt, s.receipt.MaxSize, verr)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	employee, err := s.deps.Profiles.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if employee == nil {
		return nil, fmt.Errorf("employee %s: %w", actor.ID, entity.ErrNotFound)
	}

	expense := &entity.Expense{
		ID:           uuid.NewString(),
		CompanyID:    actor.CompanyID,
		EmployeeID:   actor.ID,
		EmployeeName: employee.FullName,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Category:     req.Category,
		Description:  strings.TrimSpace(req.Description),
		ExpenseDate:  dateOnly(req.ExpenseDate),
		Status:       entity.ExpenseStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if req.Receipt != nil {
		path := receiptPath(actor.CompanyID, actor.ID, contentType, now)
		stored, err := s.deps.Storage.Upload(ctx, s.receipt.Bucket, path, req.Receipt.Content, contentType)
		if err != nil {
			s.logger.Error("Failed to upload receipt", "error", err, "employee_id", actor.ID)
			return nil, fmt.Errorf("failed to upload receipt: %w", err)
		}
		expense.ReceiptPath = stored
	}

	var approvals []*entity.Approval
	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Expenses.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}

		created, err := s.deps.Engine.Materialize(txCtx, expense)
		if err != nil {
			return err
		}
		approvals = created

		return s.deps.Logs.Create(txCtx, &entity.DecisionLog{
			ExpenseID: expense.ID,
			ActorID:   actor.ID,
			Action:    entity.ActionSubmitted,
			NewStatus: string(entity.ExpenseStatusPending),
			CreatedAt: now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to submit expense", "error", err, "employee_id", actor.ID)
		s.discardReceipt(ctx, expense.ReceiptPath)
		return nil, err
	}

	s.logger.Info("Expense submitted",
		"expense_id", expense.ID,
		"company_id", expense.CompanyID,
		"amount", expense.Amount.String(),
		"approvals", len(approvals),
	)

	s.events.publish(ctx, event.NewEvent(event.TypeExpenseCreated, expense.CompanyID, expense.ID, expense.EmployeeID,
		map[string]interface{}{"status": string(expense.Status)},
	).WithApprovers(workflow.ApproverIDs(approvals)))

	return expense, nil
}

// discardReceipt removes an uploaded receipt whose expense was never created.
// Failures are left to the reconciler.
func (s *expenseServiceImpl) discardReceipt(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.deps.Storage.Delete(ctx, s.receipt.Bucket, path); err != nil {
		s.logger.Error("Failed to discard orphaned receipt", "error", err, "path", path)
	}
}

// load fetches an expense the actor may read. Other companies' expenses are reported as not found.
func (s *expenseServiceImpl) load(ctx context.Context, actor policy.Actor, id string) (*entity.Expense, []*entity.Approval, error) {
	if !actor.Authenticated() {
		return nil, nil, entity.ErrUnauthenticated
	}

	expense, err := s.deps.Expenses.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if expense == nil || !policy.SameCompany(actor, expense.CompanyID) {
		return nil, nil, fmt.Errorf("expense %s: %w", id, entity.ErrNotFound)
	}

	approvals, err := s.deps.Approvals.ListByExpense(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	if !policy.CanViewExpense(actor, expense) && !isApprover(actor.ID, approvals) {
		return nil, nil, fmt.Errorf("expense %s: %w", id, entity.ErrForbidden)
	}
	return expense, approvals, nil
}

func (s *expenseServiceImpl) GetByID(ctx context.Context, actor policy.Actor, id string) (*ExpenseDetail, error) {
	expense, approvals, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	history, err := s.deps.Logs.ListByExpense(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return &ExpenseDetail{Expense: expense, Approvals: approvals, History: history}, nil
}

// ListForScope returns the expenses in scope, newest first unless q says otherwise
func (s *expenseServiceImpl) ListForScope(ctx context.Context, actor policy.Actor, scope feed.Scope, q listing.Query) ([]*entity.Expense, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	scope, err := authorizeScope(actor, scope)
	if err != nil {
		return nil, err
	}

	expenses, err := s.deps.Expenses.List(ctx, port.ExpenseFilter{
		CompanyID:  scope.CompanyID,
		EmployeeID: scope.EmployeeID,
		ManagerID:  scope.ManagerID,
	})
	if err != nil {
		s.logger.Error("Failed to list expenses", "error", err, "company_id", scope.CompanyID)
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	return listing.Apply(expenses, q), nil
}

// ApplyDecision applies the actor's decision on one approval and reflects the
// derived status onto the expense in the same transaction
func (s *expenseServiceImpl) ApplyDecision(ctx context.Context, actor policy.Actor, req DecisionRequest) (*DecisionResult, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	if len(req.Comment) > maxCommentLength {
		verr := entity.NewValidationError()
		verr.Add("comment", fmt.Sprintf("must be at most %d characters", maxCommentLength))
		return nil, verr
	}

	approval, err := s.deps.Approvals.GetByID(ctx, req.ApprovalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval: %w", err)
	}
	if approval == nil {
		return nil, fmt.Errorf("approval %s: %w", req.ApprovalID, entity.ErrNotFound)
	}

	var (
		expense *entity.Expense
		outcome *workflow.Outcome
	)
	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		expense, err = s.deps.Expenses.GetByID(txCtx, approval.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to load expense: %w", err)
		}
		if expense == nil || !policy.SameCompany(actor, expense.CompanyID) {
			return fmt.Errorf("approval %s: %w", req.ApprovalID, entity.ErrNotFound)
		}

		outcome, err = s.deps.Engine.Decide(txCtx, expense, workflow.DecideRequest{
			ApprovalID: req.ApprovalID,
			ApproverID: actor.ID,
			Decision:   req.Decision,
			Comment:    strings.TrimSpace(req.Comment),
		})
		if err != nil {
			return err
		}

		if outcome.StatusChanged() {
			updatedAt := s.now()
			if err := s.deps.Expenses.UpdateStatus(txCtx, expense.ID, outcome.Status, updatedAt); err != nil {
				return fmt.Errorf("update expense status: %w", err)
			}
			expense.Status = outcome.Status
			expense.UpdatedAt = updatedAt
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to apply decision", "error", err, "approval_id", req.ApprovalID, "actor_id", actor.ID)
		return nil, err
	}

	approvers := workflow.ApproverIDs(outcome.Approvals)
	events := []*event.Event{
		event.NewEvent(event.TypeApprovalDecided, expense.CompanyID, expense.ID, expense.EmployeeID, map[string]interface{}{
			"approval_id": outcome.Approval.ID,
			"decision":    string(req.Decision),
		}).WithApprovers(approvers),
	}
	if outcome.StatusChanged() {
		events = append(events, event.NewEventWithCorrelation(event.TypeExpenseStatusChanged, expense.CompanyID, expense.ID, expense.EmployeeID, map[string]interface{}{
			"previous_status": string(outcome.PreviousStatus),
			"new_status":      string(outcome.Status),
		}, events[0].CorrelationID).WithApprovers(approvers))
	}
	s.events.publish(ctx, events...)

	return &DecisionResult{Expense: expense, Approval: outcome.Approval, Closed: outcome.Closed}, nil
}

// BulkDecide applies each decision independently; one failure does not affect the others
func (s *expenseServiceImpl) BulkDecide(ctx context.Context, actor policy.Actor, reqs []DecisionRequest) []BulkResult {
	results := make([]BulkResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := s.ApplyDecision(ctx, actor, req)
		results = append(results, BulkResult{ApprovalID: req.ApprovalID, Result: res, Err: err})
	}
	return results
}

// Override lets an admin settle a pending expense directly. Open approvals are closed as moot.
func (s *expenseServiceImpl) Override(ctx context.Context, actor policy.Actor, req OverrideRequest) (*entity.Expense, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	if req.Status != entity.ExpenseStatusApproved && req.Status != entity.ExpenseStatusRejected {
		verr := entity.NewValidationError()
		verr.Add("status", "must be approved or rejected")
		return nil, verr
	}

	var (
		expense   *entity.Expense
		closed    []*entity.Approval
		approvals []*entity.Approval
	)
	err := s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		expense, err = s.deps.Expenses.GetByID(txCtx, req.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to load expense: %w", err)
		}
		if expense == nil || !policy.SameCompany(actor, expense.CompanyID) {
			return fmt.Errorf("expense %s: %w", req.ExpenseID, entity.ErrNotFound)
		}
		if !policy.CanOverride(actor, expense) {
			return fmt.Errorf("override expense %s: %w", expense.ID, entity.ErrForbidden)
		}
		if expense.Status != entity.ExpenseStatusPending {
			return fmt.Errorf("expense %s is already %s: %w", expense.ID, expense.Status, entity.ErrInvalidState)
		}

		closed, err = s.deps.Engine.CloseOpen(txCtx, expense, actor.ID, req.Comment)
		if err != nil {
			return err
		}
		// approvers who already decided still follow this expense
		approvals, err = s.deps.Approvals.ListByExpense(txCtx, expense.ID)
		if err != nil {
			return fmt.Errorf("failed to load approvals: %w", err)
		}

		now := s.now()
		if err := s.deps.Expenses.MarkOverridden(txCtx, expense.ID, req.Status, actor.ID, now); err != nil {
			return fmt.Errorf("override expense: %w", err)
		}
		previous := expense.Status
		expense.Status = req.Status
		expense.OverriddenBy = &actor.ID
		expense.UpdatedAt = now

		return s.deps.Logs.Create(txCtx, &entity.DecisionLog{
			ExpenseID:      expense.ID,
			ActorID:        actor.ID,
			Action:         entity.ActionOverridden,
			PreviousStatus: string(previous),
			NewStatus:      string(req.Status),
			Comment:        req.Comment,
			CreatedAt:      now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to override expense", "error", err, "expense_id", req.ExpenseID, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("Expense overridden", "expense_id", expense.ID, "status", string(expense.Status), "admin_id", actor.ID)

	s.events.publish(ctx, event.NewEvent(event.TypeExpenseOverridden, expense.CompanyID, expense.ID, expense.EmployeeID, map[string]interface{}{
		"new_status": string(expense.Status),
		"closed":     len(closed),
	}).WithApprovers(workflow.ApproverIDs(approvals)))

	return expense, nil
}

// PendingApprovals lists the approvals the actor can decide right now
func (s *expenseServiceImpl) PendingApprovals(ctx context.Context, actor policy.Actor, q listing.Query) ([]*listing.QueueItem, error) {
	if !actor.Authenticated() {
		return nil, entity.ErrUnauthenticated
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	pending, err := s.deps.Approvals.ListPendingByApprover(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}

	var items []*listing.QueueItem
	for _, a := range pending {
		expense, err := s.deps.Expenses.GetByID(ctx, a.ExpenseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load expense: %w", err)
		}
		if expense == nil || expense.CompanyID != actor.CompanyID || expense.Status.IsTerminal() {
			continue
		}

		siblings, err := s.deps.Approvals.ListByExpense(ctx, a.ExpenseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load approvals: %w", err)
		}
		if !policy.CanDecide(actor, expense, a, siblings) {
			continue
		}
		items = append(items, &listing.QueueItem{Approval: a, Expense: expense})
	}

	return listing.ApplyQueue(items, q), nil
}

// ReceiptURL resolves the public URL of an expense's receipt
func (s *expenseServiceImpl) ReceiptURL(ctx context.Context, actor policy.Actor, expenseID string) (string, error) {
	expense, _, err := s.load(ctx, actor, expenseID)
	if err != nil {
		return "", err
	}
	if !expense.HasReceipt() {
		return "", fmt.Errorf("receipt of expense %s: %w", expenseID, entity.ErrNotFound)
	}
	return s.deps.Storage.PublicURL(s.receipt.Bucket, expense.ReceiptPath), nil
}

// Export renders the scoped expense list as a spreadsheet
func (s *expenseServiceImpl) Export(ctx context.Context, actor policy.Actor, scope feed.Scope, q listing.Query) (*ExportResult, error) {
	expenses, err := s.ListForScope(ctx, actor, scope, q)
	if err != nil {
		return nil, err
	}

	company, err := s.deps.Companies.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("company %s: %w", actor.CompanyID, entity.ErrNotFound)
	}

	content, err := s.deps.Exporter.Export(company, expenses)
	if err != nil {
		s.logger.Error("Failed to export expenses", "error", err, "company_id", company.ID)
		return nil, fmt.Errorf("failed to export expenses: %w", err)
	}

	return &ExportResult{
		Content:     content,
		ContentType: s.deps.Exporter.ContentType(),
		Filename:    fmt.Sprintf("expenses_%s.%s", s.now().Format("20060102"), s.deps.Exporter.FileExtension()),
	}, nil
}

func isApprover(userID string, approvals []*entity.Approval) bool {
	for _, a := range approvals {
		if a.ApproverID == userID {
			return true
		}
	}
	return false
}

// dateOnly truncates t to its UTC calendar date
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
