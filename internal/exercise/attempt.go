package exercise

import (
	"fmt"
	"math"
	"time"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/scoring"
)

// State is the position of an attempt in its lifecycle.
type State int

const (
	StateAwaitingEstimate State = iota
	StateScored
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateAwaitingEstimate:
		return "awaiting_estimate"
	case StateScored:
		return "scored"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Transition describes where Advance moved the attempt. Result is set only
// when State is StateCompleted.
type Transition struct {
	State     State                  `json:"state"`
	StepIndex int                    `json:"step_index"`
	Prompt    string                 `json:"prompt,omitempty"`
	Result    *models.ExerciseResult `json:"result,omitempty"`
}

// Attempt runs one learner through one scenario:
//
//	AwaitingEstimate(i) -> Scored(i) -> AwaitingEstimate(i+1) | Completed
//
// An Attempt has a single writer and is not safe for concurrent use.
type Attempt struct {
	scenario models.Scenario
	state    State
	step     int

	estimates []models.Estimate
	outcomes  []models.StepOutcome
	biases    []models.BiasTag
	seen      map[models.BiasTag]struct{}
	result    *models.ExerciseResult

	now         func() time.Time
	startedAt   time.Time
	presentedAt time.Time
	submittedAt time.Time
}

// Option configures an Attempt.
type Option func(*Attempt)

// WithClock overrides the time source used for latencies.
func WithClock(now func() time.Time) Option {
	return func(a *Attempt) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAttempt starts an attempt at AwaitingEstimate(0).
func NewAttempt(s models.Scenario, opts ...Option) (*Attempt, error) {
	if err := ValidateScenario(s); err != nil {
		return nil, err
	}
	a := &Attempt{
		scenario:  s,
		state:     StateAwaitingEstimate,
		estimates: make([]models.Estimate, 0, s.Steps()),
		outcomes:  make([]models.StepOutcome, 0, s.Steps()),
		seen:      make(map[models.BiasTag]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.startedAt = a.now()
	a.presentedAt = a.startedAt
	return a, nil
}

func (a *Attempt) Scenario() models.Scenario { return a.scenario }
func (a *Attempt) State() State              { return a.state }
func (a *Attempt) StepIndex() int            { return a.step }

// Result returns the final record once the attempt is completed.
func (a *Attempt) Result() (*models.ExerciseResult, bool) {
	return a.result, a.result != nil
}

// Estimates returns a copy of the collected estimates.
func (a *Attempt) Estimates() []models.Estimate {
	return append(make([]models.Estimate, 0, len(a.estimates)), a.estimates...)
}

// BiasesDetected returns the attempt-level bias set in order of first
// detection.
func (a *Attempt) BiasesDetected() []models.BiasTag {
	return append(make([]models.BiasTag, 0, len(a.biases)), a.biases...)
}

// SubmitEstimate scores a 0-100 estimate for the current step. It is only
// legal in AwaitingEstimate; every check runs before the attempt is touched,
// so a rejected call leaves it unchanged.
func (a *Attempt) SubmitEstimate(percent int) (models.StepOutcome, error) {
	if a.state != StateAwaitingEstimate {
		return models.StepOutcome{}, fmt.Errorf("%w: submit estimate in state %s", ErrInvalidStateTransition, a.state)
	}
	if percent < 0 || percent > 100 {
		return models.StepOutcome{}, fmt.Errorf("%w: got %d", ErrInvalidProbabilityInput, percent)
	}

	now := a.now()
	truth := GroundTruth(a.scenario, a.step)
	p := float64(percent) / 100
	tags := DetectBiases(a.scenario, percent, truth)

	a.estimates = append(a.estimates, models.Estimate{
		StepIndex:        a.step,
		Percent:          percent,
		TimestampDeltaMs: now.Sub(a.presentedAt).Milliseconds(),
	})
	for _, tag := range tags {
		if _, ok := a.seen[tag]; !ok {
			a.seen[tag] = struct{}{}
			a.biases = append(a.biases, tag)
		}
	}
	if tags == nil {
		tags = []models.BiasTag{}
	}

	outcome := models.StepOutcome{
		StepIndex:              a.step,
		Correct:                IsCorrect(p, truth),
		UserProbability:        p,
		GroundTruth:            truth,
		AbsoluteError:          math.Abs(p - truth),
		BiasesDetectedThisStep: tags,
		HasMoreUpdates:         a.step < len(a.scenario.Updates),
	}
	a.outcomes = append(a.outcomes, outcome)
	a.submittedAt = now
	a.state = StateScored
	return outcome, nil
}

// Advance leaves Scored: it reveals the next evidence update when one
// remains, otherwise it scores the attempt and completes it.
func (a *Attempt) Advance() (Transition, error) {
	if a.state != StateScored {
		return Transition{}, fmt.Errorf("%w: advance in state %s", ErrInvalidStateTransition, a.state)
	}

	if a.step < len(a.scenario.Updates) {
		a.step++
		a.state = StateAwaitingEstimate
		a.presentedAt = a.now()
		return Transition{
			State:     a.state,
			StepIndex: a.step,
			Prompt:    Prompt(a.scenario, a.step),
		}, nil
	}

	a.result = a.buildResult()
	a.state = StateCompleted
	return Transition{State: a.state, StepIndex: a.step, Result: a.result}, nil
}

// buildResult scores the final estimate. The scenario has no literal binary
// outcome, so the ground truth is binarized at 0.5 for the Brier score.
func (a *Attempt) buildResult() *models.ExerciseResult {
	last := a.estimates[len(a.estimates)-1]
	p := last.Probability()
	truth := GroundTruth(a.scenario, a.step)

	brier := scoring.BrierScore([]scoring.Prediction{{Predicted: p, Actual: truth >= 0.5}})

	return &models.ExerciseResult{
		ScenarioID:              a.scenario.ID,
		Correct:                 IsCorrect(p, truth),
		ResponseTimeMs:          a.submittedAt.Sub(a.startedAt).Milliseconds(),
		FinalUserProbability:    p,
		FinalCorrectProbability: truth,
		BrierScore:              brier,
		FinalStepIndex:          a.step,
		BiasesDetected:          a.BiasesDetected(),
		Estimates:               a.Estimates(),
	}
}
