package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/domain/repository"
)

var _ repository.Metrics = (*Recorder)(nil)
var _ repository.Metrics = Nop{}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordAttemptStarted(2, models.KindProbabilityUpdate)
	r.RecordAttemptStarted(2, models.KindProbabilityUpdate)
	r.RecordEstimate(0, true)
	r.RecordEstimate(1, false)
	r.RecordBias(models.BiasAnchoring50)
	r.RecordResult(2, 0.16, false)
	r.RecordDelivery("dropped")
	r.SetPendingResults(3)
	r.SetActiveAttempts(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attemptsStarted.WithLabelValues("2", "probability_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimates.WithLabelValues("1", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.biases.WithLabelValues("anchoring_50")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.results.WithLabelValues("2", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveries.WithLabelValues("dropped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.pendingResults))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.activeAttempts))
	assert.Equal(t, 1, testutil.CollectAndCount(r.brier))
}

func TestRecordersDoNotCollideAcrossRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
