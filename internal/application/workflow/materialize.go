package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// defaultSequence is the sequence_order of the fallback manager approval
const defaultSequence = 1

type approvalKey struct {
	approverID string
	sequence   int
}

// Materialize creates one approval per matching rule. Threshold rules add an
// approver on top of the employee's manager, so the manager approval at
// defaultSequence is kept unless some other kind of rule matched. Duplicate
// (approver, sequence) pairs collapse into one row.
func (e *engineImpl) Materialize(ctx context.Context, expense *entity.Expense) ([]*entity.Approval, error) {
	employee, err := e.profileRepo.GetByID(ctx, expense.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if employee == nil {
		return nil, fmt.Errorf("employee %s: %w", expense.EmployeeID, entity.ErrNotFound)
	}

	rules, err := e.ruleRepo.ListByCompany(ctx, expense.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rules: %w", err)
	}

	var (
		matched       []*entity.ApprovalRule
		thresholdOnly = true
	)
	for _, rule := range rules {
		if !rule.Matches(expense.Amount) {
			continue
		}
		matched = append(matched, rule)
		if rule.RuleType != entity.RuleTypeThreshold {
			thresholdOnly = false
		}
	}

	now := e.now()
	var (
		approvals []*entity.Approval
		seen      = make(map[approvalKey]bool)
	)
	add := func(approver *entity.Profile, sequence int, mode entity.TierMode) {
		key := approvalKey{approverID: approver.ID, sequence: sequence}
		if seen[key] {
			return
		}
		seen[key] = true
		approvals = append(approvals, &entity.Approval{
			ID:            uuid.NewString(),
			ExpenseID:     expense.ID,
			ApproverID:    approver.ID,
			ApproverName:  approver.FullName,
			SequenceOrder: sequence,
			TierMode:      mode,
			Status:        entity.ApprovalStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if thresholdOnly {
		manager, err := e.resolver.Resolve(ctx, employee)
		if err != nil {
			return nil, err
		}
		add(manager, defaultSequence, entity.TierModeAll)
	}

	for _, rule := range matched {
		approver, err := e.approverFor(ctx, rule, employee)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		add(approver, rule.SequenceOrder, rule.RuleType.TierMode())
	}

	if err := e.approvalRepo.CreateBatch(ctx, approvals); err != nil {
		return nil, fmt.Errorf("failed to create approvals: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("Approvals materialized",
			"expense_id", expense.ID,
			"rules_matched", len(matched),
			"approval_count", len(approvals),
		)
	}
	return approvals, nil
}

// approverFor resolves the approver of a rule. A fixed approver must be an
// active member of the employee's company; an employee named as their own
// fixed approver is routed up the reporting chain instead.
func (e *engineImpl) approverFor(ctx context.Context, rule *entity.ApprovalRule, employee *entity.Profile) (*entity.Profile, error) {
	if rule.RequiredApproverID == nil || *rule.RequiredApproverID == "" || *rule.RequiredApproverID == employee.ID {
		return e.resolver.Resolve(ctx, employee)
	}

	approver, err := e.profileRepo.GetByID(ctx, *rule.RequiredApproverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load required approver: %w", err)
	}
	if approver == nil || !eligible(approver, employee) {
		return nil, fmt.Errorf("%w: required approver %s is not an active member of company %s",
			entity.ErrNoApproverFound, *rule.RequiredApproverID, employee.CompanyID)
	}
	return approver, nil
}

// stamp returns a timestamp strictly after prev so compare-and-swap always sees a change
func stamp(now, prev time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
