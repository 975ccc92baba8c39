package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a change to a company's expense collection.
// CompanyID, EmployeeID and ApproverIDs drive change-feed scoping.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	CompanyID     string                 `json:"company_id"`
	ExpenseID     string                 `json:"expense_id"`
	EmployeeID    string                 `json:"employee_id"`
	ApproverIDs   []string               `json:"approver_ids,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, companyID, expenseID, employeeID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, companyID, expenseID, employeeID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, companyID, expenseID, employeeID string, payload map[string]interface{}, correlationID string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		CompanyID:     companyID,
		ExpenseID:     expenseID,
		EmployeeID:    employeeID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithApprovers returns a copy of the event tagged with the expense's approvers
func (e *Event) WithApprovers(approverIDs []string) *Event {
	clone := *e
	clone.ApproverIDs = append([]string(nil), approverIDs...)
	return &clone
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// HasApprover reports whether userID is one of the event's approvers
func (e *Event) HasApprover(userID string) bool {
	for _, id := range e.ApproverIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
