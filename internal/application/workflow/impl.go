package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approvals/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type engineImpl struct {
	profileRepo  port.ProfileRepository
	ruleRepo     port.RuleRepository
	approvalRepo port.ApprovalRepository
	logRepo      port.DecisionLogRepository
	resolver     *ChainResolver
	logger       Logger
	now          func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithMaxChainDepth bounds the reporting-chain walk
func WithMaxChainDepth(depth int) EngineOption {
	return func(e *engineImpl) {
		e.resolver = NewChainResolver(e.profileRepo, depth)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	profileRepo port.ProfileRepository,
	ruleRepo port.RuleRepository,
	approvalRepo port.ApprovalRepository,
	logRepo port.DecisionLogRepository,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		profileRepo:  profileRepo,
		ruleRepo:     ruleRepo,
		approvalRepo: approvalRepo,
		logRepo:      logRepo,
		resolver:     NewChainResolver(profileRepo, DefaultMaxChainDepth),
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Decide applies a decision. Checks run in order: terminal expense
// (InvalidState), foreign approval (NotFound), wrong approver (Forbidden),
// decided approval (InvalidState). The approval machine's guard then refuses
// a tier still blocked by an earlier one (Forbidden).
func (e *engineImpl) Decide(ctx context.Context, expense *entity.Expense, req DecideRequest) (*Outcome, error) {
	if !req.Decision.IsValid() {
		v := entity.NewValidationError()
		v.Add("decision", "must be approved or rejected")
		return nil, v
	}
	if expense.Status.IsTerminal() {
		return nil, fmt.Errorf("expense %s is already %s: %w", expense.ID, expense.Status, entity.ErrInvalidState)
	}

	approvals, err := e.approvalRepo.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	target := find(approvals, req.ApprovalID)
	if target == nil {
		return nil, fmt.Errorf("approval %s: %w", req.ApprovalID, entity.ErrNotFound)
	}
	if target.ApproverID != req.ApproverID {
		return nil, fmt.Errorf("approval %s is assigned to another approver: %w", target.ID, entity.ErrForbidden)
	}
	if target.Status != entity.ApprovalStatusPending {
		return nil, fmt.Errorf("approval %s is already %s: %w", target.ID, target.Status, entity.ErrInvalidState)
	}
	trigger, err := domainwf.TriggerFor(req.Decision)
	if err != nil {
		return nil, err
	}

	previous := target.Status
	if err := e.transition(domainwf.WithDecision(ctx, target, approvals), target, trigger, req.Comment); err != nil {
		return nil, err
	}

	action := entity.ActionApproved
	if req.Decision == entity.DecisionRejected {
		action = entity.ActionRejected
	}
	if err := e.appendLog(ctx, target, req.ApproverID, action, string(previous), req.Comment); err != nil {
		return nil, err
	}

	var toClose []*entity.Approval
	switch {
	case req.Decision == entity.DecisionRejected:
		// a veto closes everything still open
		for _, a := range approvals {
			if a.Status == entity.ApprovalStatusPending {
				toClose = append(toClose, a)
			}
		}
	case target.TierMode == entity.TierModeAny:
		if tier, ok := domainwf.TierOf(target.SequenceOrder, approvals); ok && tier.Mode == entity.TierModeAny {
			toClose = tier.Pending()
		}
	}

	closed, err := e.closeAll(ctx, toClose, req.ApproverID, "")
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Approval:       target,
		Closed:         closed,
		Approvals:      approvals,
		PreviousStatus: expense.Status,
		Status:         domainwf.DeriveExpenseStatus(approvals),
	}

	if e.logger != nil {
		e.logger.Info("Approval decided",
			"expense_id", expense.ID,
			"approval_id", target.ID,
			"approver_id", req.ApproverID,
			"decision", string(req.Decision),
			"closed", len(closed),
			"expense_status", string(outcome.Status),
		)
	}
	return outcome, nil
}

// CloseOpen moots every pending approval of the expense
func (e *engineImpl) CloseOpen(ctx context.Context, expense *entity.Expense, actorID, comment string) ([]*entity.Approval, error) {
	approvals, err := e.approvalRepo.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	var open []*entity.Approval
	for _, a := range approvals {
		if a.Status == entity.ApprovalStatusPending {
			open = append(open, a)
		}
	}
	return e.closeAll(ctx, open, actorID, comment)
}

func (e *engineImpl) closeAll(ctx context.Context, approvals []*entity.Approval, actorID, comment string) ([]*entity.Approval, error) {
	closed := make([]*entity.Approval, 0, len(approvals))
	for _, a := range approvals {
		previous := a.Status
		if err := e.transition(ctx, a, domainwf.TriggerClose, comment); err != nil {
			return nil, err
		}
		if err := e.appendLog(ctx, a, actorID, entity.ActionClosed, string(previous), comment); err != nil {
			return nil, err
		}
		closed = append(closed, a)
	}
	return closed, nil
}

// transition fires trigger on the approval's state machine and persists the
// result with compare-and-swap on the updated_at read earlier
func (e *engineImpl) transition(ctx context.Context, a *entity.Approval, trigger domainwf.Trigger, comment string) error {
	machine, err := domainwf.NewApprovalMachine(a.Status)
	if err != nil {
		return err
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		switch {
		case errors.Is(err, domainwf.ErrInvalidTransition):
			return fmt.Errorf("approval %s: %v: %w", a.ID, err, entity.ErrInvalidState)
		case errors.Is(err, domainwf.ErrEarlierTierOpen):
			return fmt.Errorf("approval %s is waiting on an earlier tier: %w", a.ID, entity.ErrForbidden)
		}
		return err
	}

	expected := a.UpdatedAt
	next := *a
	next.Status = entity.ApprovalStatus(machine.State())
	next.Comment = comment
	next.UpdatedAt = stamp(e.now(), expected)

	if err := e.approvalRepo.CompareAndSwap(ctx, &next, expected); err != nil {
		if errors.Is(err, entity.ErrConflict) {
			return fmt.Errorf("approval %s changed concurrently: %w", a.ID, err)
		}
		return fmt.Errorf("failed to update approval: %w", err)
	}

	*a = next
	return nil
}

func (e *engineImpl) appendLog(ctx context.Context, a *entity.Approval, actorID, action, previous, comment string) error {
	log := &entity.DecisionLog{
		ExpenseID:      a.ExpenseID,
		ApprovalID:     a.ID,
		ActorID:        actorID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      string(a.Status),
		Comment:        comment,
		CreatedAt:      a.UpdatedAt,
	}
	if err := e.logRepo.Create(ctx, log); err != nil {
		return fmt.Errorf("failed to append decision log: %w", err)
	}
	return nil
}

func find(approvals []*entity.Approval, id string) *entity.Approval {
	for _, a := range approvals {
		if a.ID == id {
			return a
		}
	}
	return nil
}
