package workflow

import (
	"sort"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Tier is the set of approvals sharing one sequence_order
type Tier struct {
	Sequence  int
	Mode      entity.TierMode
	Approvals []*entity.Approval
}

// GroupTiers groups approvals by sequence_order in ascending order.
// A tier is any-of only when every member was created in any-of mode.
func GroupTiers(approvals []*entity.Approval) []Tier {
	bySeq := make(map[int]*Tier)
	for _, a := range approvals {
		t, ok := bySeq[a.SequenceOrder]
		if !ok {
			t = &Tier{Sequence: a.SequenceOrder, Mode: entity.TierModeAny}
			bySeq[a.SequenceOrder] = t
		}
		if a.TierMode != entity.TierModeAny {
			t.Mode = entity.TierModeAll
		}
		t.Approvals = append(t.Approvals, a)
	}

	tiers := make([]Tier, 0, len(bySeq))
	for _, t := range bySeq {
		tiers = append(tiers, *t)
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].Sequence < tiers[j].Sequence
	})
	return tiers
}

// Satisfied reports whether the tier no longer blocks later tiers.
// An all-of tier needs every non-moot member approved; an any-of tier needs one approval.
func (t Tier) Satisfied() bool {
	approved := 0
	for _, a := range t.Approvals {
		switch a.Status {
		case entity.ApprovalStatusApproved:
			approved++
		case entity.ApprovalStatusPending, entity.ApprovalStatusRejected:
			if t.Mode == entity.TierModeAll {
				return false
			}
		}
	}
	return approved > 0
}

// Pending returns the members still awaiting a decision
func (t Tier) Pending() []*entity.Approval {
	var out []*entity.Approval
	for _, a := range t.Approvals {
		if a.Status == entity.ApprovalStatusPending {
			out = append(out, a)
		}
	}
	return out
}

// DeriveExpenseStatus computes the expense status from its approvals.
// Any rejection rejects; all tiers satisfied approves; anything else, including no approvals, is pending.
func DeriveExpenseStatus(approvals []*entity.Approval) entity.ExpenseStatus {
	if len(approvals) == 0 {
		return entity.ExpenseStatusPending
	}
	for _, a := range approvals {
		if a.Status == entity.ApprovalStatusRejected {
			return entity.ExpenseStatusRejected
		}
	}
	for _, t := range GroupTiers(approvals) {
		if !t.Satisfied() {
			return entity.ExpenseStatusPending
		}
	}
	return entity.ExpenseStatusApproved
}

// IsActionable reports whether target may be decided now: it is pending and
// every tier with a strictly smaller sequence_order is satisfied.
func IsActionable(target *entity.Approval, approvals []*entity.Approval) bool {
	if target == nil || target.Status != entity.ApprovalStatusPending {
		return false
	}
	for _, t := range GroupTiers(approvals) {
		if t.Sequence >= target.SequenceOrder {
			break
		}
		if !t.Satisfied() {
			return false
		}
	}
	return true
}

// TierOf returns the tier containing sequence, if any
func TierOf(sequence int, approvals []*entity.Approval) (Tier, bool) {
	for _, t := range GroupTiers(approvals) {
		if t.Sequence == sequence {
			return t, true
		}
	}
	return Tier{}, false
}
