package entity

import "time"

// ApprovalStatus is the state of a single approver's decision
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	// ApprovalStatusMoot closes an approval without action, after a veto or
	// once another member of an any-of tier approved.
	ApprovalStatusMoot ApprovalStatus = "moot"
)

// IsValid reports whether s is a known approval status
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusMoot:
		return true
	}
	return false
}

// TierMode decides how approvals sharing a sequence_order combine
type TierMode string

const (
	// TierModeAll requires every member of the tier to approve
	TierModeAll TierMode = "all"
	// TierModeAny is satisfied by the first member to approve
	TierModeAny TierMode = "any"
)

// Decision is the action an approver takes
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// IsValid reports whether d is approved or rejected
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Approval is one approver's step on an expense, materialized from an ApprovalRule
type Approval struct {
	ID            string         `json:"id"`
	ExpenseID     string         `json:"expense_id"`
	ApproverID    string         `json:"approver_id"`
	ApproverName  string         `json:"approver_name,omitempty"`
	SequenceOrder int            `json:"sequence_order"`
	TierMode      TierMode       `json:"tier_mode"`
	Status        ApprovalStatus `json:"status"`
	Comment       string         `json:"comment,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
