package service

import (
	"context"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/progress"
)

// ProgressTracker aggregates finished results per learner.
type ProgressTracker interface {
	Record(ctx context.Context, ev *models.ResultEvent) error
	Summary(learnerID string) (progress.Summary, error)
	Level(learnerID string) int
}
