package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
	// TriggerClose retires a pending approval that no longer needs action
	TriggerClose Trigger = "close"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
