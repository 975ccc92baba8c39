package service

import (
	"context"

	"github.com/garyjia/expense-approvals/internal/application/feed"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/internal/domain/policy"
)

// DefaultFeedBuffer is the per-client event buffer
const DefaultFeedBuffer = 16

// FeedService hands out change-feed subscriptions bounded by access policy
type FeedService interface {
	// Follow subscribes the actor to a scope. The returned scope is the one
	// actually followed after narrowing; cancel must be called when done.
	Follow(ctx context.Context, actor policy.Actor, scope feed.Scope) (<-chan *event.Event, func(), feed.Scope, error)
}

type feedServiceImpl struct {
	manager *feed.Manager
	buffer  int
	logger  Logger
}

// NewFeedService creates a new feed service
func NewFeedService(manager *feed.Manager, buffer int, logger Logger) FeedService {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &feedServiceImpl{manager: manager, buffer: buffer, logger: logger}
}

func (s *feedServiceImpl) Follow(ctx context.Context, actor policy.Actor, scope feed.Scope) (<-chan *event.Event, func(), feed.Scope, error) {
	scope, err := authorizeScope(actor, scope)
	if err != nil {
		return nil, nil, scope, err
	}

	ch, cancel, err := s.manager.SubscribeChan(scope, s.buffer)
	if err != nil {
		return nil, nil, scope, err
	}

	s.logger.Info("Feed client subscribed", "user_id", actor.ID, "scope", scope.Key())
	return ch, cancel, scope, nil
}
