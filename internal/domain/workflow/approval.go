package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

var (
	approvalBuilderOnce sync.Once
	approvalBuilder     StateMachineBuilder
)

func buildApprovalMachine(initial State) StateMachine {
	approvalBuilderOnce.Do(func() {
		b := NewBuilder()
		b.Configure(StatePending).
			PermitIf(TriggerApprove, StateApproved, tierOpen).
			PermitIf(TriggerReject, StateRejected, tierOpen).
			Permit(TriggerClose, StateMoot)
		approvalBuilder = b
	})
	return approvalBuilder.Build(initial)
}

type decisionKey struct{}

type decisionScope struct {
	target    *entity.Approval
	approvals []*entity.Approval
}

// WithDecision attaches the approval being decided and all approvals of its
// expense. Approve and reject are refused without it.
func WithDecision(ctx context.Context, target *entity.Approval, approvals []*entity.Approval) context.Context {
	return context.WithValue(ctx, decisionKey{}, decisionScope{target: target, approvals: approvals})
}

func tierOpen(ctx context.Context) error {
	scope, ok := ctx.Value(decisionKey{}).(decisionScope)
	if !ok {
		return ErrNoDecision
	}
	if !IsActionable(scope.target, scope.approvals) {
		return ErrEarlierTierOpen
	}
	return nil
}

// NewApprovalMachine returns a state machine positioned at the approval's current status
func NewApprovalMachine(status entity.ApprovalStatus) (StateMachine, error) {
	state := State(status)
	if !state.IsValid() {
		return nil, fmt.Errorf("unknown approval status %q", status)
	}
	return buildApprovalMachine(state), nil
}

// TriggerFor maps an approver's decision to the trigger that applies it
func TriggerFor(decision entity.Decision) (Trigger, error) {
	switch decision {
	case entity.DecisionApproved:
		return TriggerApprove, nil
	case entity.DecisionRejected:
		return TriggerReject, nil
	}
	return "", fmt.Errorf("unknown decision %q", decision)
}
