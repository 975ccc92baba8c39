package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
	"github.com/garyjia/expense-approvals/internal/domain/stats"
)

// StatsService serves per-scope statistics snapshots
type StatsService interface {
	// Snapshot returns the latest snapshot for the scope, computing it on first use
	Snapshot(ctx context.Context, actor policy.Actor, scope feed.Scope) (stats.Snapshot, error)

	// TrackedScopes returns the number of scopes kept up to date
	TrackedScopes() int

	// Close drops every feed subscription
	Close()
}

type trackedScope struct {
	tracker *stats.Tracker
	cancel  func()
}

type statsServiceImpl struct {
	companies port.CompanyRepository
	expenses  port.ExpenseRepository
	feed      *feed.Manager
	logger    Logger
	now       func() time.Time

	mu     sync.Mutex
	scopes map[string]*trackedScope
}

// NewStatsService creates a StatsService recomputing on feed events
func NewStatsService(companies port.CompanyRepository, expenses port.ExpenseRepository, feedManager *feed.Manager, logger Logger) StatsService {
	return &statsServiceImpl{
		companies: companies,
		expenses:  expenses,
		feed:      feedManager,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		scopes:    make(map[string]*trackedScope),
	}
}

func (s *statsServiceImpl) Snapshot(ctx context.Context, actor policy.Actor, scope feed.Scope) (stats.Snapshot, error) {
	scope, err := authorizeScope(actor, scope)
	if err != nil {
		return stats.Snapshot{}, err
	}

	s.mu.Lock()
	tracked, ok := s.scopes[scope.Key()]
	s.mu.Unlock()
	if ok {
		if snap, seeded := tracked.tracker.Latest(); seeded {
			return snap, nil
		}
	}

	tracked, err = s.track(scope)
	if err != nil {
		return stats.Snapshot{}, err
	}
	return s.recompute(ctx, scope, tracked.tracker)
}

// track registers the scope with the feed once
func (s *statsServiceImpl) track(scope feed.Scope) (*trackedScope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tracked, ok := s.scopes[scope.Key()]; ok {
		return tracked, nil
	}

	tracked := &trackedScope{tracker: stats.NewTracker()}
	cancel, err := s.feed.Subscribe(scope, func(ctx context.Context, evt *event.Event) {
		if _, err := s.recompute(ctx, scope, tracked.tracker); err != nil {
			s.logger.Error("Failed to recompute statistics", "error", err, "scope", scope.Key(), "event_id", evt.ID)
		}
	})
	if err != nil {
		return nil, err
	}
	tracked.cancel = cancel
	s.scopes[scope.Key()] = tracked
	return tracked, nil
}

func (s *statsServiceImpl) recompute(ctx context.Context, scope feed.Scope, tracker *stats.Tracker) (stats.Snapshot, error) {
	company, err := s.companies.GetByID(ctx, scope.CompanyID)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return stats.Snapshot{}, fmt.Errorf("company %s: %w", scope.CompanyID, entity.ErrNotFound)
	}

	expenses, err := s.expenses.List(ctx, port.ExpenseFilter{
		CompanyID:  scope.CompanyID,
		EmployeeID: scope.EmployeeID,
		ManagerID:  scope.ManagerID,
	})
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("failed to list expenses: %w", err)
	}

	return tracker.Observe(stats.Aggregate(expenses, company.Currency), s.now()), nil
}

func (s *statsServiceImpl) TrackedScopes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scopes)
}

func (s *statsServiceImpl) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, tracked := range s.scopes {
		tracked.cancel()
		delete(s.scopes, key)
	}
}
