package exercise

import "errors"

var (
	// ErrInvalidStateTransition is returned when a transition is not legal
	// in the attempt's current state. It signals a caller bug.
	ErrInvalidStateTransition = errors.New("exercise: invalid state transition")

	// ErrNoScenarioAvailable is returned when the pool has no scenario for
	// the requested level.
	ErrNoScenarioAvailable = errors.New("exercise: no scenario available")

	// ErrInvalidProbabilityInput is returned for estimates outside 0-100.
	ErrInvalidProbabilityInput = errors.New("exercise: probability must be an integer in [0,100]")

	// ErrInvalidScenario is returned for scenarios whose data breaks the
	// model invariants (levels, kinds, probabilities in [0,1]).
	ErrInvalidScenario = errors.New("exercise: invalid scenario")
)
