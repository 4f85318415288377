package exercise

import (
	"fmt"
	"math"

	"ForecastDrill/internal/domain/models"
)

// DefaultInitialProbability is the step-0 ground truth when a scenario does
// not define one.
const DefaultInitialProbability = 0.5

// GroundTruth returns the author-defined correct probability for step.
// Step 0 uses the initial probability; step i uses updates[i-1].
func GroundTruth(s models.Scenario, step int) float64 {
	if step == 0 {
		if s.InitialCorrectProbability == nil {
			return DefaultInitialProbability
		}
		return *s.InitialCorrectProbability
	}
	return s.Updates[step-1].CorrectUpdatedProbability
}

// Prompt returns the text presented at step: the initial question first,
// then each new piece of evidence.
func Prompt(s models.Scenario, step int) string {
	if step == 0 {
		return s.InitialQuestion
	}
	return s.Updates[step-1].EvidenceText
}

// ValidateScenario checks the invariants an attempt relies on.
func ValidateScenario(s models.Scenario) error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidScenario)
	}
	if s.Level < 1 || s.Level > 5 {
		return fmt.Errorf("%w: scenario %s: level %d outside 1-5", ErrInvalidScenario, s.ID, s.Level)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: scenario %s: unknown kind %q", ErrInvalidScenario, s.ID, s.Kind)
	}
	if s.InitialCorrectProbability != nil && !isProbability(*s.InitialCorrectProbability) {
		return fmt.Errorf("%w: scenario %s: initial probability %v outside [0,1]",
			ErrInvalidScenario, s.ID, *s.InitialCorrectProbability)
	}
	for i, u := range s.Updates {
		if !isProbability(u.CorrectUpdatedProbability) {
			return fmt.Errorf("%w: scenario %s: update %d probability %v outside [0,1]",
				ErrInvalidScenario, s.ID, i+1, u.CorrectUpdatedProbability)
		}
	}
	return nil
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
