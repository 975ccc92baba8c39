package entity

import "time"

// Decision log actions
const (
	ActionSubmitted  = "SUBMITTED"
	ActionApproved   = "APPROVED"
	ActionRejected   = "REJECTED"
	ActionClosed     = "CLOSED"
	ActionOverridden = "OVERRIDDEN"
)

// DecisionLog is the audit trail of an expense
type DecisionLog struct {
	ID             int64     `json:"id"`
	ExpenseID      string    `json:"expense_id"`
	ApprovalID     string    `json:"approval_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
