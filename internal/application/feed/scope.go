package feed

import (
	"errors"

	"github.com/garyjia/expense-approvals/internal/domain/event"
)

// ErrInvalidScope is returned for a scope without a company
var ErrInvalidScope = errors.New("feed scope requires a company id")

// Scope selects the slice of a company's expense collection a subscriber follows.
// EmployeeID keeps events for that owner; ManagerID keeps events where that user is an approver.
type Scope struct {
	CompanyID  string `json:"company_id"`
	EmployeeID string `json:"employee_id,omitempty"`
	ManagerID  string `json:"manager_id,omitempty"`
}

// Key is the identity used to share one subscription among listeners
func (s Scope) Key() string {
	return s.CompanyID + "|" + s.EmployeeID + "|" + s.ManagerID
}

// Validate checks the scope is usable
func (s Scope) Validate() error {
	if s.CompanyID == "" {
		return ErrInvalidScope
	}
	return nil
}

// Matches reports whether the event falls inside the scope
func (s Scope) Matches(evt *event.Event) bool {
	if evt == nil || evt.CompanyID != s.CompanyID {
		return false
	}
	if s.EmployeeID != "" && evt.EmployeeID != s.EmployeeID {
		return false
	}
	if s.ManagerID != "" && !evt.HasApprover(s.ManagerID) {
		return false
	}
	return true
}
