package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/exercise"
	"ForecastDrill/internal/progress"
	"ForecastDrill/internal/scoring"
	"ForecastDrill/pkg/logger"
	"ForecastDrill/pkg/metrics"
)

func prob(p float64) *float64 { return &p }

type staticProvider struct {
	pool []models.Scenario
	err  error
}

func (p staticProvider) Scenarios(context.Context) ([]models.Scenario, error) { return p.pool, p.err }

type recordingSink struct {
	mu     sync.Mutex
	events []*models.ResultEvent
	err    error
}

func (s *recordingSink) Deliver(_ context.Context, ev *models.ResultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func fixturePool() []models.Scenario {
	return []models.Scenario{
		{
			ID:                        "rain",
			Level:                     1,
			Kind:                      models.KindCalibration,
			InitialQuestion:           "Will it rain on your commute?",
			InitialCorrectProbability: prob(0.3),
			Explanation:               "Base rate for the season.",
		},
		{
			ID:                        "trial",
			Level:                     2,
			Kind:                      models.KindProbabilityUpdate,
			InitialQuestion:           "Is the suspect guilty?",
			InitialCorrectProbability: prob(0.1),
			Updates: []models.EvidenceUpdate{
				{EvidenceText: "DNA matches.", CorrectUpdatedProbability: 0.8},
			},
		},
	}
}

func newTestTrainer(t *testing.T, sink ResultDeliverer) (*Trainer, *progress.Tracker, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	tracker := progress.NewTracker(1)
	n := 0
	tr := NewTrainer(
		staticProvider{pool: fixturePool()},
		sink,
		tracker,
		metrics.Nop{},
		logger.Nop(),
		time.Minute,
		WithTrainerClock(c.now),
		WithSelector(exercise.NewSelector(firstPick{})),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("attempt-%d", n) }),
	)
	return tr, tracker, c
}

func TestTrainerFullAttempt(t *testing.T) {
	sink := &recordingSink{}
	tr, tracker, _ := newTestTrainer(t, sink)
	ctx := context.Background()

	snap, err := tr.StartAttempt(ctx, "ana", 2)
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", snap.ID)
	assert.Equal(t, "trial", snap.View.ScenarioID)
	assert.Equal(t, 2, snap.View.TotalSteps)

	out, err := tr.SubmitEstimate(ctx, snap.ID, 10)
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.True(t, out.HasMoreUpdates)

	adv, err := tr.Advance(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, exercise.StateAwaitingEstimate, adv.Transition.State)
	assert.Equal(t, 1, adv.Attempt.View.StepIndex)

	_, err = tr.SubmitEstimate(ctx, snap.ID, 75)
	require.NoError(t, err)
	adv, err = tr.Advance(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, exercise.StateCompleted, adv.Transition.State)
	require.NotNil(t, adv.Transition.Result)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "attempt-1", ev.AttemptID)
	assert.Equal(t, "ana", ev.LearnerID)
	assert.Equal(t, 2, ev.Level)
	assert.Equal(t, models.KindProbabilityUpdate, ev.Kind)
	assert.Equal(t, "trial", ev.Result.ScenarioID)

	// Delivery goes to the sink only; the tracker is fed downstream.
	_, err = tracker.Summary("ana")
	assert.ErrorIs(t, err, progress.ErrUnknownLearner)
}

func TestTrainerLevelZeroUsesLearnerLevel(t *testing.T) {
	tr, _, _ := newTestTrainer(t, &recordingSink{})

	snap, err := tr.StartAttempt(context.Background(), "new-learner", 0)
	require.NoError(t, err)
	assert.Equal(t, "rain", snap.View.ScenarioID)
	assert.Equal(t, 1, snap.View.Level)
}

func TestTrainerNoScenarioForLevel(t *testing.T) {
	tr, _, _ := newTestTrainer(t, &recordingSink{})

	_, err := tr.StartAttempt(context.Background(), "ana", 5)
	assert.ErrorIs(t, err, exercise.ErrNoScenarioAvailable)
}

func TestTrainerProviderError(t *testing.T) {
	tr := NewTrainer(staticProvider{err: errors.New("boom")}, &recordingSink{},
		progress.NewTracker(1), metrics.Nop{}, logger.Nop(), time.Minute)

	_, err := tr.StartAttempt(context.Background(), "ana", 1)
	assert.ErrorContains(t, err, "boom")
}

func TestTrainerRejectsOutOfOrderCalls(t *testing.T) {
	tr, _, _ := newTestTrainer(t, &recordingSink{})
	ctx := context.Background()
	snap, err := tr.StartAttempt(ctx, "ana", 1)
	require.NoError(t, err)

	_, err = tr.Advance(ctx, snap.ID)
	assert.ErrorIs(t, err, exercise.ErrInvalidStateTransition)

	_, err = tr.SubmitEstimate(ctx, snap.ID, 101)
	assert.ErrorIs(t, err, exercise.ErrInvalidProbabilityInput)

	_, err = tr.SubmitEstimate(ctx, snap.ID, 30)
	require.NoError(t, err)
	_, err = tr.SubmitEstimate(ctx, snap.ID, 30)
	assert.ErrorIs(t, err, exercise.ErrInvalidStateTransition)
}

func TestTrainerUnknownAndExpiredAttempts(t *testing.T) {
	tr, _, c := newTestTrainer(t, &recordingSink{})
	ctx := context.Background()

	_, err := tr.GetAttempt(ctx, "missing")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	snap, err := tr.StartAttempt(ctx, "ana", 1)
	require.NoError(t, err)
	c.t = c.t.Add(2 * time.Minute)

	_, err = tr.SubmitEstimate(ctx, snap.ID, 30)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestTrainerDeliveryFailureDoesNotFailAdvance(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	tr, _, _ := newTestTrainer(t, sink)
	ctx := context.Background()

	snap, err := tr.StartAttempt(ctx, "ana", 1)
	require.NoError(t, err)
	_, err = tr.SubmitEstimate(ctx, snap.ID, 30)
	require.NoError(t, err)

	adv, err := tr.Advance(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, exercise.StateCompleted, adv.Transition.State)
	assert.Len(t, sink.events, 1)
}

func TestTrainerScoringValidatesInput(t *testing.T) {
	tr, _, _ := newTestTrainer(t, &recordingSink{})

	score, err := tr.Brier([]scoring.Prediction{{Predicted: 1, Actual: true}, {Predicted: 0, Actual: true}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)

	_, err = tr.Brier([]scoring.Prediction{{Predicted: 1.2, Actual: true}})
	assert.ErrorIs(t, err, ErrInvalidPredictions)

	_, err = tr.Calibration([]scoring.Prediction{{Predicted: -0.1}})
	assert.ErrorIs(t, err, ErrInvalidPredictions)

	bins, err := tr.Calibration([]scoring.Prediction{{Predicted: 1.0, Actual: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, bins[scoring.NumBins-1].Count)
}

func TestTrainerJanitorStopsWithContext(t *testing.T) {
	tr, _, _ := newTestTrainer(t, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestResultsHandlerRecordsProgress(t *testing.T) {
	tracker := progress.NewTracker(1)
	h := NewResultsHandler("forecastdrill.results", tracker, metrics.Nop{}, logger.Nop())
	assert.Equal(t, "forecastdrill.results", h.Topic())

	ev := models.ResultEvent{
		AttemptID: "a1",
		LearnerID: "ana",
		Level:     1,
		Kind:      models.KindCalibration,
		Result:    models.ExerciseResult{ScenarioID: "rain", Correct: true, FinalUserProbability: 0.3, BrierScore: 0.09},
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	require.NoError(t, h.Handle(context.Background(), b))

	sum, err := tracker.Summary("ana")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ExercisesCompleted)

	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
}
