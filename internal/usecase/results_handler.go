package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ForecastDrill/internal/domain/models"
	domrepo "ForecastDrill/internal/domain/repository"
	domsvc "ForecastDrill/internal/domain/service"
	pkgkafka "ForecastDrill/pkg/kafka"
	"ForecastDrill/pkg/logger"
)

// ResultsHandler consumes the results topic and feeds the progress tracker.
// The tracker ignores attempt ids it has already seen, so redelivery is safe.
type ResultsHandler struct {
	topic   string
	tracker domsvc.ProgressTracker
	metrics domrepo.Metrics
	log     *logger.Logger
}

var _ pkgkafka.MessageHandler = (*ResultsHandler)(nil)

func NewResultsHandler(topic string, tracker domsvc.ProgressTracker, metrics domrepo.Metrics, log *logger.Logger) *ResultsHandler {
	return &ResultsHandler{
		topic:   topic,
		tracker: tracker,
		metrics: metrics,
		log:     log.With(logger.String("component", "results_handler")),
	}
}

func (h *ResultsHandler) Topic() string { return h.topic }

func (h *ResultsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ResultEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode result event: %w", err)
	}
	if !ev.CompletedAt.IsZero() {
		h.metrics.RecordLatency("result_e2e", time.Since(ev.CompletedAt).Seconds())
	}

	if err := h.tracker.Record(ctx, &ev); err != nil {
		h.metrics.RecordError("progress_record")
		return err
	}
	h.log.Debug("result recorded",
		logger.String("attempt_id", ev.AttemptID),
		logger.String("learner_id", ev.LearnerID),
		logger.String("trace_id", pkgkafka.TraceID(ctx)),
	)
	return nil
}
