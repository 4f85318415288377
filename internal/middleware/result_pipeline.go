package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ForecastDrill/internal/domain/models"
	domrepo "ForecastDrill/internal/domain/repository"
	"ForecastDrill/pkg/logger"
)

// ErrResultDropped is returned when the sink failed and the retry buffer is
// full.
var ErrResultDropped = errors.New("result pipeline: buffer full, result dropped")

// ResultPipeline sits between the trainer and the result sink. It tries the
// sink inline and, when the sink fails, parks the event in a bounded buffer
// that a background loop drains with capped exponential backoff.
type ResultPipeline struct {
	sink    domrepo.ResultSink
	metrics domrepo.Metrics
	log     *logger.Logger

	bufCh      chan *models.ResultEvent
	backoffMin time.Duration
	backoffMax time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type PipelineOption func(*ResultPipeline)

// WithBufferSize sets how many failed results wait for redelivery.
func WithBufferSize(n int) PipelineOption {
	return func(p *ResultPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.ResultEvent, n)
		}
	}
}

// WithBackoff sets the retry delay range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ResultPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// NewResultPipeline creates a new pipeline.
func NewResultPipeline(sink domrepo.ResultSink, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *ResultPipeline {
	p := &ResultPipeline{
		sink:       sink,
		metrics:    metrics,
		log:        log.With(logger.String("component", "result_pipeline")),
		bufCh:      make(chan *models.ResultEvent, 1000),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deliver hands ev to the sink. A sink failure is absorbed by the buffer and
// reported only when the buffer is full.
func (p *ResultPipeline) Deliver(ctx context.Context, ev *models.ResultEvent) error {
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	start := time.Now()
	err := p.sink.Deliver(ctx, ev)
	p.metrics.RecordLatency("result_deliver", time.Since(start).Seconds())
	if err == nil {
		p.metrics.RecordDelivery("delivered")
		return nil
	}

	p.metrics.RecordError("result_sink")
	select {
	case p.bufCh <- ev:
		p.metrics.RecordDelivery("buffered")
		p.metrics.SetPendingResults(len(p.bufCh))
		p.log.Warn("result sink failed, buffered for retry",
			logger.String("attempt_id", ev.AttemptID),
			logger.Int("pending", len(p.bufCh)),
			logger.Error(err),
		)
		return nil
	default:
		p.metrics.RecordDelivery("dropped")
		p.log.Error("result dropped",
			logger.String("attempt_id", ev.AttemptID),
			logger.String("learner_id", ev.LearnerID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrResultDropped, err)
	}
}

// Start launches the redelivery loop.
func (p *ResultPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.drain(ctx)
}

func (p *ResultPipeline) drain(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case ev := <-p.bufCh:
			if !p.redeliver(ctx, ev) {
				// Put it back so Stop can make a last attempt.
				select {
				case p.bufCh <- ev:
				default:
					p.metrics.RecordDelivery("dropped")
				}
				return
			}
			p.metrics.SetPendingResults(len(p.bufCh))
		}
	}
}

// redeliver retries ev until the sink accepts it. It returns false when the
// pipeline is stopping first.
func (p *ResultPipeline) redeliver(ctx context.Context, ev *models.ResultEvent) bool {
	backoff := p.backoffMin
	for {
		err := p.sink.Deliver(ctx, ev)
		if err == nil {
			p.metrics.RecordDelivery("redelivered")
			return true
		}
		p.metrics.RecordError("result_redeliver")
		p.log.Debug("redelivery failed",
			logger.String("attempt_id", ev.AttemptID),
			logger.Duration("backoff_ms", backoff),
			logger.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-p.stopCh:
			return false
		case <-ctx.Done():
			return false
		}
		backoff *= 2
		if backoff > p.backoffMax {
			backoff = p.backoffMax
		}
	}
}

// Stop ends the loop and makes one final delivery attempt for everything
// still buffered. It returns how many results were lost.
func (p *ResultPipeline) Stop(ctx context.Context) int {
	p.mu.Lock()
	started := p.started
	p.started = false
	p.mu.Unlock()

	if started {
		close(p.stopCh)
		select {
		case <-p.doneCh:
		case <-ctx.Done():
		}
	}

	lost := 0
	for {
		select {
		case ev := <-p.bufCh:
			if ctx.Err() != nil || p.sink.Deliver(ctx, ev) != nil {
				lost++
				p.metrics.RecordDelivery("dropped")
				continue
			}
			p.metrics.RecordDelivery("redelivered")
		default:
			p.metrics.SetPendingResults(0)
			if lost > 0 {
				p.log.Error("results lost on shutdown", logger.Int("count", lost))
			}
			return lost
		}
	}
}

// Pending reports buffered results.
func (p *ResultPipeline) Pending() int {
	return len(p.bufCh)
}

func validateEvent(ev *models.ResultEvent) error {
	if ev == nil {
		return fmt.Errorf("result event nil")
	}
	if ev.AttemptID == "" {
		return fmt.Errorf("attempt id empty")
	}
	if ev.LearnerID == "" {
		return fmt.Errorf("learner id empty")
	}
	return nil
}
