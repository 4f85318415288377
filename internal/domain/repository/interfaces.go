package repository

import (
	"context"

	"ForecastDrill/internal/domain/models"
)

// ScenarioProvider supplies the candidate scenario pool. Selection by level
// happens in the exercise layer.
type ScenarioProvider interface {
	Scenarios(ctx context.Context) ([]models.Scenario, error)
}

// ResultSink receives finished exercise results.
type ResultSink interface {
	Deliver(ctx context.Context, ev *models.ResultEvent) error
	Close() error
}

type Metrics interface {
	RecordAttemptStarted(level int, kind models.ScenarioKind)
	RecordEstimate(step int, correct bool)
	RecordBias(tag models.BiasTag)
	RecordResult(level int, brier float64, correct bool)
	RecordDelivery(outcome string)
	SetPendingResults(n int)
	SetActiveAttempts(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
