package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseCreated       Type = "expense.created"
	TypeExpenseStatusChanged Type = "expense.status_changed"
	TypeExpenseOverridden    Type = "expense.overridden"
	TypeApprovalDecided      Type = "approval.decided"
)

// ChangeTypes lists every event that mutates the expense collection
func ChangeTypes() []Type {
	return []Type{
		TypeExpenseCreated,
		TypeExpenseStatusChanged,
		TypeExpenseOverridden,
		TypeApprovalDecided,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range ChangeTypes() {
		if t == known {
			return true
		}
	}
	return false
}
