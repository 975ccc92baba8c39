package workflow

import (
	"context"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Engine runs the approval workflow of an expense. Every method expects to run
// inside the caller's transaction; the caller writes the expense row itself.
type Engine interface {
	// Materialize creates the expense's approvals from the company rules,
	// falling back to a single approval for the direct manager
	Materialize(ctx context.Context, expense *entity.Expense) ([]*entity.Approval, error)

	// Decide authorizes and applies one approver's decision and derives the new expense status
	Decide(ctx context.Context, expense *entity.Expense, req DecideRequest) (*Outcome, error)

	// CloseOpen marks every pending approval of the expense moot
	CloseOpen(ctx context.Context, expense *entity.Expense, actorID, comment string) ([]*entity.Approval, error)
}

// DecideRequest is a single decision on an approval
type DecideRequest struct {
	ApprovalID string
	ApproverID string
	Decision   entity.Decision
	Comment    string
}

// Outcome is the result of a decision
type Outcome struct {
	Approval       *entity.Approval
	Closed         []*entity.Approval
	Approvals      []*entity.Approval
	PreviousStatus entity.ExpenseStatus
	Status         entity.ExpenseStatus
}

// StatusChanged reports whether the decision moved the expense status
func (o *Outcome) StatusChanged() bool {
	return o.PreviousStatus != o.Status
}

// ApproverIDs lists the distinct approvers of the expense
func ApproverIDs(approvals []*entity.Approval) []string {
	seen := make(map[string]struct{}, len(approvals))
	ids := make([]string, 0, len(approvals))
	for _, a := range approvals {
		if _, ok := seen[a.ApproverID]; ok {
			continue
		}
		seen[a.ApproverID] = struct{}{}
		ids = append(ids, a.ApproverID)
	}
	return ids
}
