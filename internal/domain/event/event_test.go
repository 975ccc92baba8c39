package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"expense created", TypeExpenseCreated, true},
		{"status changed", TypeExpenseStatusChanged, true},
		{"overridden", TypeExpenseOverridden, true},
		{"approval decided", TypeApprovalDecided, true},
		{"unknown type", Type("unknown.type"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"status": "approved"}

	evt := NewEvent(TypeExpenseStatusChanged, "acme", "exp-1", "emp-1", payload)

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.Type != TypeExpenseStatusChanged {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeExpenseStatusChanged)
	}
	if evt.CompanyID != "acme" || evt.ExpenseID != "exp-1" || evt.EmployeeID != "emp-1" {
		t.Errorf("unexpected scope fields: %+v", evt)
	}
	if evt.GetPayloadString("status") != "approved" {
		t.Errorf("Payload[status] = %v, want approved", evt.Payload["status"])
	}
	if evt.CorrelationID == "" || evt.CorrelationID == evt.ID {
		t.Error("CorrelationID should be set and distinct from ID")
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeApprovalDecided, "acme", "exp-1", "emp-1", nil, "corr-1")
	if evt.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %v, want corr-1", evt.CorrelationID)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeExpenseCreated, "acme", "exp-1", "emp-1", map[string]interface{}{"key1": "value1"})

	updated := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("original payload should not be modified")
	}
	if updated.GetPayloadString("key1") != "value1" || updated.GetPayloadString("key2") != "value2" {
		t.Errorf("updated payload = %v", updated.Payload)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
	if updated.GetPayloadString("missing") != "" {
		t.Error("missing key should return empty string")
	}
}

func TestEvent_WithApprovers(t *testing.T) {
	original := NewEvent(TypeExpenseCreated, "acme", "exp-1", "emp-1", nil)
	ids := []string{"mgr-1", "fin-1"}

	tagged := original.WithApprovers(ids)
	ids[0] = "changed"

	if !tagged.HasApprover("mgr-1") || !tagged.HasApprover("fin-1") {
		t.Errorf("ApproverIDs = %v", tagged.ApproverIDs)
	}
	if original.HasApprover("mgr-1") {
		t.Error("original event should not be modified")
	}
}
