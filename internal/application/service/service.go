package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// publisher dispatches change events after commit. Dispatch failures are
// logged and never fail the request that caused them.
type publisher struct {
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

func (p publisher) publish(ctx context.Context, events ...*event.Event) {
	if p.dispatcher == nil {
		return
	}
	for _, evt := range events {
		if err := p.dispatcher.Dispatch(ctx, evt); err != nil {
			p.logger.Error("Failed to dispatch event",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"expense_id", evt.ExpenseID,
				"error", err,
			)
		}
	}
}

// authorizeScope narrows a requested scope to what the actor may read.
// Any member may follow their own expenses or the expenses they approve;
// other employees' expenses need the company-wide view capability.
func authorizeScope(actor policy.Actor, scope feed.Scope) (feed.Scope, error) {
	if !actor.Authenticated() {
		return scope, entity.ErrUnauthenticated
	}
	if scope.CompanyID == "" {
		scope.CompanyID = actor.CompanyID
	}
	if scope.CompanyID != actor.CompanyID {
		return scope, fmt.Errorf("company %s: %w", scope.CompanyID, entity.ErrForbidden)
	}

	if policy.CanViewCompanyExpenses(actor, scope.CompanyID) {
		return scope, nil
	}

	switch {
	case scope.ManagerID != "":
		if scope.ManagerID != actor.ID {
			return scope, fmt.Errorf("approver scope of %s: %w", scope.ManagerID, entity.ErrForbidden)
		}
	case scope.EmployeeID == "":
		scope.EmployeeID = actor.ID
	case scope.EmployeeID != actor.ID:
		return scope, fmt.Errorf("expenses of %s: %w", scope.EmployeeID, entity.ErrForbidden)
	}
	return scope, nil
}
