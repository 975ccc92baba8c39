// Package feed keeps a single change subscription per scope and fans
// dispatched expense events out to every listener of that scope.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/domain/event"
)

// handlerName is the dispatcher registration shared by all scopes
const handlerName = "feed-manager"

// Listener reacts to an event in its scope. Listeners refetch rather than patch.
type Listener func(ctx context.Context, evt *event.Event)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	scope     Scope
	listeners map[uint64]Listener
}

// Manager owns the per-scope subscriptions
type Manager struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	nextID uint64
	logger Logger
}

// NewManager creates a manager and registers it once with the dispatcher for every change type
func NewManager(d dispatcher.Dispatcher, logger Logger) *Manager {
	m := &Manager{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
	d.SubscribeMany(event.ChangeTypes(), handlerName, m.handle)
	return m
}

// Subscribe adds a listener to the scope's subscription, creating it on first use.
// The returned cancel func is safe to call more than once.
func (m *Manager) Subscribe(scope Scope, listener Listener) (cancel func(), err error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}

	m.mu.Lock()
	key := scope.Key()
	sub, ok := m.subs[key]
	if !ok {
		sub = &subscription{scope: scope, listeners: make(map[uint64]Listener)}
		m.subs[key] = sub
		m.logInfo("Feed subscription opened", "scope", key)
	}
	m.nextID++
	id := m.nextID
	sub.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(key, id) })
	}, nil
}

// SubscribeChan delivers scope events on a buffered channel. Events are
// dropped when the buffer is full; receivers refetch on the next one.
func (m *Manager) SubscribeChan(scope Scope, buffer int) (<-chan *event.Event, func(), error) {
	ch := make(chan *event.Event, buffer)
	var mu sync.Mutex
	closed := false

	cancel, err := m.Subscribe(scope, func(ctx context.Context, evt *event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- evt:
		default:
			m.logError("Feed channel full, event dropped", "scope", scope.Key(), "event_id", evt.ID)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	return ch, func() {
		cancel()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}, nil
}

func (m *Manager) remove(key string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[key]
	if !ok {
		return
	}
	delete(sub.listeners, id)
	if len(sub.listeners) == 0 {
		delete(m.subs, key)
		m.logInfo("Feed subscription closed", "scope", key)
	}
}

// SubscriptionCount returns the number of distinct scopes with listeners
func (m *Manager) SubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// ListenerCount returns the number of listeners on a scope
func (m *Manager) ListenerCount(scope Scope) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sub, ok := m.subs[scope.Key()]; ok {
		return len(sub.listeners)
	}
	return 0
}

func (m *Manager) handle(ctx context.Context, evt *event.Event) error {
	m.mu.RLock()
	var targets []Listener
	for _, sub := range m.subs {
		if !sub.scope.Matches(evt) {
			continue
		}
		for _, l := range sub.listeners {
			targets = append(targets, l)
		}
	}
	m.mu.RUnlock()

	for _, l := range targets {
		m.notify(ctx, evt, l)
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, evt *event.Event, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			m.logError("Feed listener panic recovered", "event_id", evt.ID, "panic", r)
		}
	}()
	l(ctx, evt)
}

func (m *Manager) logInfo(msg string, kv ...interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, kv...)
	}
}

func (m *Manager) logError(msg string, kv ...interface{}) {
	if m.logger != nil {
		m.logger.Error(msg, kv...)
	}
}
