package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ForecastDrill/internal/domain/models"
	domrepo "ForecastDrill/internal/domain/repository"
	domsvc "ForecastDrill/internal/domain/service"
	"ForecastDrill/internal/exercise"
	"ForecastDrill/internal/progress"
	"ForecastDrill/internal/scoring"
	"ForecastDrill/internal/service/cache"
	"ForecastDrill/pkg/logger"
)

// ResultDeliverer accepts completed results. The result pipeline satisfies it.
type ResultDeliverer interface {
	Deliver(ctx context.Context, ev *models.ResultEvent) error
}

// AttemptSnapshot is what callers see of a registered attempt.
type AttemptSnapshot struct {
	ID        string        `json:"id"`
	LearnerID string        `json:"learner_id"`
	View      exercise.View `json:"view"`
}

// AdvanceOutcome is the transition plus the refreshed view.
type AdvanceOutcome struct {
	Transition exercise.Transition `json:"transition"`
	Attempt    AttemptSnapshot     `json:"attempt"`
}

type attemptEntry struct {
	mu        sync.Mutex
	id        string
	learnerID string
	attempt   *exercise.Attempt
}

// Trainer drives attempts for many learners. Each attempt is owned by one
// registry entry and mutated under that entry's lock, so concurrent
// requests for the same attempt are serialized.
type Trainer struct {
	scenarios domrepo.ScenarioProvider
	selector  *exercise.Selector
	attempts  *cache.TTLCache[*attemptEntry]
	results   ResultDeliverer
	progress  domsvc.ProgressTracker
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

type TrainerOption func(*Trainer)

// WithTrainerClock replaces time.Now for attempts and the registry.
func WithTrainerClock(now func() time.Time) TrainerOption {
	return func(t *Trainer) { t.now = now }
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(newID func() string) TrainerOption {
	return func(t *Trainer) { t.newID = newID }
}

// WithSelector replaces the random scenario selector.
func WithSelector(s *exercise.Selector) TrainerOption {
	return func(t *Trainer) { t.selector = s }
}

func NewTrainer(
	scenarios domrepo.ScenarioProvider,
	results ResultDeliverer,
	tracker domsvc.ProgressTracker,
	metrics domrepo.Metrics,
	log *logger.Logger,
	attemptTTL time.Duration,
	opts ...TrainerOption,
) *Trainer {
	t := &Trainer{
		scenarios: scenarios,
		results:   results,
		progress:  tracker,
		metrics:   metrics,
		log:       log.With(logger.String("component", "trainer")),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.selector == nil {
		t.selector = exercise.NewSelector(nil)
	}
	t.attempts = cache.NewTTLCache[*attemptEntry](attemptTTL, t.now)
	return t
}

// StartAttempt picks a scenario for level and registers a new attempt.
// Level 0 uses the learner's current level.
func (t *Trainer) StartAttempt(ctx context.Context, learnerID string, level int) (AttemptSnapshot, error) {
	start := t.now()
	defer func() { t.metrics.RecordLatency("start_attempt", t.now().Sub(start).Seconds()) }()

	if level == 0 {
		level = t.progress.Level(learnerID)
	}

	pool, err := t.scenarios.Scenarios(ctx)
	if err != nil {
		t.metrics.RecordError("scenario_provider")
		return AttemptSnapshot{}, fmt.Errorf("load scenarios: %w", err)
	}

	scenario, err := t.selector.Pick(pool, level)
	if err != nil {
		t.metrics.RecordError("no_scenario")
		return AttemptSnapshot{}, err
	}

	attempt, err := exercise.NewAttempt(scenario, exercise.WithClock(t.now))
	if err != nil {
		t.metrics.RecordError("invalid_scenario")
		return AttemptSnapshot{}, err
	}

	entry := &attemptEntry{id: t.newID(), learnerID: learnerID, attempt: attempt}
	t.attempts.Set(entry.id, entry)
	t.metrics.RecordAttemptStarted(scenario.Level, scenario.Kind)
	t.metrics.SetActiveAttempts(t.attempts.Len())

	t.log.Info("attempt started",
		logger.String("attempt_id", entry.id),
		logger.String("learner_id", learnerID),
		logger.String("scenario_id", scenario.ID),
		logger.Int("level", scenario.Level),
		logger.Int("steps", scenario.Steps()),
	)
	return entry.snapshot(), nil
}

// GetAttempt returns the current view of an attempt.
func (t *Trainer) GetAttempt(_ context.Context, id string) (AttemptSnapshot, error) {
	entry, err := t.lookup(id)
	if err != nil {
		return AttemptSnapshot{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.snapshot(), nil
}

// SubmitEstimate scores a 0-100 estimate for the attempt's current step.
func (t *Trainer) SubmitEstimate(_ context.Context, id string, percent int) (models.StepOutcome, error) {
	entry, err := t.lookup(id)
	if err != nil {
		return models.StepOutcome{}, err
	}

	entry.mu.Lock()
	outcome, err := entry.attempt.SubmitEstimate(percent)
	entry.mu.Unlock()
	if err != nil {
		t.recordRejection(err)
		return models.StepOutcome{}, err
	}
	t.attempts.Touch(id)

	t.metrics.RecordEstimate(outcome.StepIndex, outcome.Correct)
	for _, tag := range outcome.BiasesDetectedThisStep {
		t.metrics.RecordBias(tag)
	}
	t.log.Debug("estimate scored",
		logger.String("attempt_id", id),
		logger.Int("step", outcome.StepIndex),
		logger.Float64("user_probability", outcome.UserProbability),
		logger.Float64("absolute_error", outcome.AbsoluteError),
		logger.Bool("correct", outcome.Correct),
	)
	return outcome, nil
}

// Advance moves past a scored step. When the attempt completes, its result
// goes to the result pipeline; a delivery failure is logged and does not
// undo the completion.
func (t *Trainer) Advance(ctx context.Context, id string) (AdvanceOutcome, error) {
	entry, err := t.lookup(id)
	if err != nil {
		return AdvanceOutcome{}, err
	}

	entry.mu.Lock()
	tr, err := entry.attempt.Advance()
	snap := entry.snapshot()
	scenario := entry.attempt.Scenario()
	entry.mu.Unlock()
	if err != nil {
		t.recordRejection(err)
		return AdvanceOutcome{}, err
	}
	t.attempts.Touch(id)

	if tr.State == exercise.StateCompleted && tr.Result != nil {
		t.complete(ctx, entry, scenario, *tr.Result)
	}
	return AdvanceOutcome{Transition: tr, Attempt: snap}, nil
}

func (t *Trainer) complete(ctx context.Context, entry *attemptEntry, s models.Scenario, res models.ExerciseResult) {
	t.metrics.RecordResult(s.Level, res.BrierScore, res.Correct)
	t.log.Info("attempt completed",
		logger.String("attempt_id", entry.id),
		logger.String("learner_id", entry.learnerID),
		logger.String("scenario_id", s.ID),
		logger.Float64("brier", res.BrierScore),
		logger.Bool("correct", res.Correct),
		logger.Int64("response_time_ms", res.ResponseTimeMs),
	)

	ev := &models.ResultEvent{
		AttemptID:   entry.id,
		LearnerID:   entry.learnerID,
		Level:       s.Level,
		Kind:        s.Kind,
		Result:      res,
		CompletedAt: t.now().UTC(),
	}
	if err := t.results.Deliver(ctx, ev); err != nil {
		t.metrics.RecordError("result_delivery")
		t.log.Error("result delivery failed",
			logger.String("attempt_id", entry.id),
			logger.Error(err),
		)
	}
}

// Brier scores an arbitrary prediction set.
func (t *Trainer) Brier(predictions []scoring.Prediction) (float64, error) {
	if err := scoring.ValidatePredictions(predictions); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPredictions, err)
	}
	return scoring.BrierScore(predictions), nil
}

// Calibration bins an arbitrary prediction set.
func (t *Trainer) Calibration(predictions []scoring.Prediction) ([scoring.NumBins]scoring.CalibrationBin, error) {
	if err := scoring.ValidatePredictions(predictions); err != nil {
		return [scoring.NumBins]scoring.CalibrationBin{}, fmt.Errorf("%w: %v", ErrInvalidPredictions, err)
	}
	return scoring.Calibration(predictions), nil
}

// Progress returns the learner's progress summary.
func (t *Trainer) Progress(learnerID string) (progress.Summary, error) {
	return t.progress.Summary(learnerID)
}

// RunJanitor drops expired attempts every interval until ctx is done.
func (t *Trainer) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.attempts.Sweep(); n > 0 {
				t.log.Debug("expired attempts swept", logger.Int("count", n))
			}
			t.metrics.SetActiveAttempts(t.attempts.Len())
		}
	}
}

func (t *Trainer) lookup(id string) (*attemptEntry, error) {
	entry, ok := t.attempts.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, id)
	}
	return entry, nil
}

func (t *Trainer) recordRejection(err error) {
	switch {
	case errors.Is(err, exercise.ErrInvalidStateTransition):
		t.metrics.RecordError("invalid_state")
	case errors.Is(err, exercise.ErrInvalidProbabilityInput):
		t.metrics.RecordError("invalid_probability")
	default:
		t.metrics.RecordError("attempt")
	}
}

// snapshot must be called with e.mu held.
func (e *attemptEntry) snapshot() AttemptSnapshot {
	return AttemptSnapshot{ID: e.id, LearnerID: e.learnerID, View: e.attempt.View()}
}
