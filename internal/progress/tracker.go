// Package progress aggregates finished exercise results per learner: the
// running Brier score, calibration, bias counts and level progression.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/scoring"
)

var ErrUnknownLearner = errors.New("progress: unknown learner")

const (
	MinLevel = 1
	MaxLevel = 5

	// A learner is offered the next level after every unlockEvery results
	// when the Brier score over all results is below unlockBrier.
	unlockEvery = 5
	unlockBrier = 0.15
)

// Entry is one recorded result.
type Entry struct {
	AttemptID       string              `json:"attempt_id"`
	ScenarioID      string              `json:"scenario_id"`
	Level           int                 `json:"level"`
	Kind            models.ScenarioKind `json:"kind"`
	Correct         bool                `json:"correct"`
	UserProbability float64             `json:"user_probability"`
	BrierScore      float64             `json:"brier_score"`
	Biases          []models.BiasTag    `json:"biases"`
	CompletedAt     time.Time           `json:"completed_at"`
}

// HistoryPoint is the learner's overall Brier score after the n-th result.
type HistoryPoint struct {
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
	ScenarioID string  `json:"scenario_id"`
}

// Summary is a point-in-time snapshot of a learner's progress.
type Summary struct {
	LearnerID          string                                  `json:"learner_id"`
	Level              int                                     `json:"level"`
	LevelName          string                                  `json:"level_name"`
	ExercisesCompleted int                                     `json:"exercises_completed"`
	LevelProgress      float64                                 `json:"level_progress"`
	BrierScore         float64                                 `json:"brier_score"`
	Grade              scoring.Grade                           `json:"grade"`
	Trend              scoring.Trend                           `json:"trend"`
	BrierHistory       []HistoryPoint                          `json:"brier_history"`
	Calibration        [scoring.NumBins]scoring.CalibrationBin `json:"calibration"`
	BiasCount          int                                     `json:"bias_count"`
	BiasesByTag        map[models.BiasTag]int                  `json:"biases_by_tag"`
	Recent             []Entry                                 `json:"recent"`
}

type learner struct {
	level   int
	entries []Entry
	seen    map[string]struct{}
}

// predictions scores each result as a forecast of its own correctness.
func (l *learner) predictions() []scoring.Prediction {
	out := make([]scoring.Prediction, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, scoring.Prediction{Predicted: e.UserProbability, Actual: e.Correct})
	}
	return out
}

// Tracker keeps progress for every learner in memory. It is safe for
// concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	learners   map[string]*learner
	startLevel int
	recentSize int
}

// NewTracker creates a tracker whose learners start at startLevel.
func NewTracker(startLevel int) *Tracker {
	if startLevel < MinLevel || startLevel > MaxLevel {
		startLevel = MinLevel
	}
	return &Tracker{
		learners:   make(map[string]*learner),
		startLevel: startLevel,
		recentSize: 10,
	}
}

// Record adds a finished result. Events already seen for the same attempt
// are ignored so that redelivery does not double count.
func (t *Tracker) Record(_ context.Context, ev *models.ResultEvent) error {
	if ev == nil {
		return fmt.Errorf("progress: nil event")
	}
	if ev.LearnerID == "" {
		return fmt.Errorf("progress: event %s has no learner", ev.AttemptID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.learners[ev.LearnerID]
	if !ok {
		l = &learner{level: t.startLevel, seen: make(map[string]struct{})}
		t.learners[ev.LearnerID] = l
	}
	if ev.AttemptID != "" {
		if _, dup := l.seen[ev.AttemptID]; dup {
			return nil
		}
		l.seen[ev.AttemptID] = struct{}{}
	}

	l.entries = append(l.entries, Entry{
		AttemptID:       ev.AttemptID,
		ScenarioID:      ev.Result.ScenarioID,
		Level:           ev.Level,
		Kind:            ev.Kind,
		Correct:         ev.Result.Correct,
		UserProbability: ev.Result.FinalUserProbability,
		BrierScore:      ev.Result.BrierScore,
		Biases:          ev.Result.BiasesDetected,
		CompletedAt:     ev.CompletedAt,
	})

	n := len(l.entries)
	if n%unlockEvery == 0 && l.level < MaxLevel && scoring.BrierScore(l.predictions()) < unlockBrier {
		l.level++
	}
	return nil
}

// Level returns the learner's current level, or the start level for a
// learner with no results.
func (t *Tracker) Level(learnerID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if l, ok := t.learners[learnerID]; ok {
		return l.level
	}
	return t.startLevel
}

// Summary builds the learner's progress snapshot.
func (t *Tracker) Summary(learnerID string) (Summary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.learners[learnerID]
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownLearner, learnerID)
	}

	preds := l.predictions()
	running := scoring.RunningBrier(preds)
	history := make([]HistoryPoint, len(running))
	for i, score := range running {
		history[i] = HistoryPoint{Index: i + 1, Score: score, ScenarioID: l.entries[i].ScenarioID}
	}

	byTag := make(map[models.BiasTag]int)
	total := 0
	for _, e := range l.entries {
		for _, tag := range e.Biases {
			byTag[tag]++
			total++
		}
	}

	brier := scoring.BrierScore(preds)
	n := len(l.entries)
	recentStart := max(0, n-t.recentSize)

	return Summary{
		LearnerID:          learnerID,
		Level:              l.level,
		LevelName:          models.LevelName(l.level),
		ExercisesCompleted: n,
		LevelProgress:      float64(n%unlockEvery) / unlockEvery * 100,
		BrierScore:         brier,
		Grade:              scoring.GradeFor(brier),
		Trend:              scoring.TrendOf(running),
		BrierHistory:       history,
		Calibration:        scoring.Calibration(preds),
		BiasCount:          total,
		BiasesByTag:        byTag,
		Recent:             append([]Entry(nil), l.entries[recentStart:]...),
	}, nil
}
