package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guard of a trigger refuses
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrEarlierTierOpen means a lower sequence tier is not yet satisfied
	ErrEarlierTierOpen = errors.New("waiting on an earlier tier")

	// ErrNoDecision means approve or reject was fired without WithDecision
	ErrNoDecision = errors.New("decision fired without approval context")
)
