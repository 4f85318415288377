package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ForecastDrill/internal/domain/models"
)

const namespace = "forecastdrill"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	attemptsStarted *prometheus.CounterVec
	estimates       *prometheus.CounterVec
	biases          *prometheus.CounterVec
	results         *prometheus.CounterVec
	brier           *prometheus.HistogramVec
	deliveries      *prometheus.CounterVec
	pendingResults  prometheus.Gauge
	activeAttempts  prometheus.Gauge
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		attemptsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_started_total",
				Help:      "Exercise attempts started",
			},
			[]string{"level", "kind"},
		),
		estimates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "estimates_scored_total",
				Help:      "Estimates scored against ground truth",
			},
			[]string{"step", "correct"},
		),
		biases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bias_flags_total",
				Help:      "Bias heuristics triggered",
			},
			[]string{"bias"},
		),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Completed exercise attempts",
			},
			[]string{"level", "correct"},
		),
		brier: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "result_brier_score",
				Help:      "Brier score of completed attempts",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 0.75, 1},
			},
			[]string{"level"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_deliveries_total",
				Help:      "Result sink delivery outcomes",
			},
			[]string{"outcome"},
		),
		pendingResults: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "results_pending",
			Help:      "Results buffered for redelivery",
		}),
		activeAttempts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts_active",
			Help:      "Attempts held in the registry",
		}),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordAttemptStarted(level int, kind models.ScenarioKind) {
	r.attemptsStarted.WithLabelValues(strconv.Itoa(level), string(kind)).Inc()
}

func (r *Recorder) RecordEstimate(step int, correct bool) {
	r.estimates.WithLabelValues(strconv.Itoa(step), strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) RecordBias(tag models.BiasTag) {
	r.biases.WithLabelValues(string(tag)).Inc()
}

func (r *Recorder) RecordResult(level int, brier float64, correct bool) {
	lvl := strconv.Itoa(level)
	r.results.WithLabelValues(lvl, strconv.FormatBool(correct)).Inc()
	r.brier.WithLabelValues(lvl).Observe(brier)
}

// RecordDelivery counts one of delivered, buffered, redelivered or dropped.
func (r *Recorder) RecordDelivery(outcome string) {
	r.deliveries.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetPendingResults(n int) {
	r.pendingResults.Set(float64(n))
}

func (r *Recorder) SetActiveAttempts(n int) {
	r.activeAttempts.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordAttemptStarted(int, models.ScenarioKind) {}
func (Nop) RecordEstimate(int, bool)                      {}
func (Nop) RecordBias(models.BiasTag)                     {}
func (Nop) RecordResult(int, float64, bool)               {}
func (Nop) RecordDelivery(string)                         {}
func (Nop) SetPendingResults(int)                         {}
func (Nop) SetActiveAttempts(int)                         {}
func (Nop) RecordError(string)                            {}
func (Nop) RecordLatency(string, float64)                 {}
