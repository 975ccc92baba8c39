package workflow

import (
	"context"
	"fmt"
)

// GuardFunc vetoes a transition by returning a non-nil error
type GuardFunc func(ctx context.Context) error

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns the transition table of the given state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions out of one state
type StateConfiguration interface {
	// Permit allows a trigger to move to the target state unconditionally
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows a trigger to move to the target state when guard returns nil
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	to    State
	guard GuardFunc
}

type transitionTable map[Trigger][]transition

type stateMachineBuilder struct {
	tables map[State]transitionTable
}

type stateMachine struct {
	current State
	tables  map[State]transitionTable
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{tables: make(map[State]transitionTable)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	table, ok := b.tables[state]
	if !ok {
		table = make(transitionTable)
		b.tables[state] = table
	}
	return table
}

// Build snapshots the tables so configuring the builder later does not reach
// machines already handed out.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	tables := make(map[State]transitionTable, len(b.tables))
	for state, table := range b.tables {
		snapshot := make(transitionTable, len(table))
		for trigger, ts := range table {
			snapshot[trigger] = append([]transition(nil), ts...)
		}
		tables[state] = snapshot
	}
	return &stateMachine{current: initialState, tables: tables}
}

func (t transitionTable) Permit(trigger Trigger, toState State) StateConfiguration {
	return t.PermitIf(trigger, toState, nil)
}

func (t transitionTable) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	t[trigger] = append(t[trigger], transition{to: toState, guard: guard})
	return t
}

func (m *stateMachine) State() State {
	return m.current
}

// Fire takes the first transition whose guard passes. When every guard
// refuses, the returned error wraps ErrGuardFailed and the last guard's reason.
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.tables[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	var refused error
	for _, t := range candidates {
		if t.guard == nil {
			m.current = t.to
			return nil
		}
		if refused = t.guard(ctx); refused == nil {
			m.current = t.to
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s: %w", ErrGuardFailed, trigger, m.current, refused)
}
