package workflow

// State represents the lifecycle state of a single approval
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateMoot     State = "moot"
)

// IsTerminal returns true if the state accepts no further transitions
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateMoot:
		return true
	}
	return false
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known approval state
func (s State) IsValid() bool {
	return s == StatePending || s.IsTerminal()
}
