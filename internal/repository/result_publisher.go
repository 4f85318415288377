package repository

import (
	"context"
	"errors"

	"ForecastDrill/internal/domain/models"
	domrepo "ForecastDrill/internal/domain/repository"
	pkgkafka "ForecastDrill/pkg/kafka"
)

// Publisher is the part of pkg/kafka.Producer the result sink uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaResultSink publishes finished results to a topic keyed by learner,
// so one learner's results stay ordered on a single partition.
type KafkaResultSink struct {
	producer Publisher
	topic    string
}

// NewKafkaResultSink creates Kafka result sink.
func NewKafkaResultSink(producer Publisher, topic string) *KafkaResultSink {
	return &KafkaResultSink{producer: producer, topic: topic}
}

func (s *KafkaResultSink) Deliver(ctx context.Context, ev *models.ResultEvent) error {
	if ev == nil {
		return errors.New("nil result event")
	}
	return s.producer.Publish(ctx, s.topic, []byte(ev.LearnerID), ev,
		pkgkafka.Header{Key: pkgkafka.TraceHeader, Value: ev.AttemptID},
	)
}

func (s *KafkaResultSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// ProgressRecorder is what the in-process sink feeds.
type ProgressRecorder interface {
	Record(ctx context.Context, ev *models.ResultEvent) error
}

// ProgressSink hands results straight to the progress tracker.
type ProgressSink struct {
	tracker ProgressRecorder
}

func NewProgressSink(tracker ProgressRecorder) *ProgressSink {
	return &ProgressSink{tracker: tracker}
}

func (s *ProgressSink) Deliver(ctx context.Context, ev *models.ResultEvent) error {
	return s.tracker.Record(ctx, ev)
}

func (s *ProgressSink) Close() error { return nil }

// MultiSink delivers to every sink and joins their errors. A failing sink
// does not stop delivery to the others.
type MultiSink []domrepo.ResultSink

func (m MultiSink) Deliver(ctx context.Context, ev *models.ResultEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
