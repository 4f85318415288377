package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrierScoreKnownValues(t *testing.T) {
	assert.InDelta(t, 0.09, BrierScore([]Prediction{{Predicted: 0.7, Actual: true}}), 1e-12)
	assert.InDelta(t, 0.09, BrierScore([]Prediction{{Predicted: 0.3, Actual: false}}), 1e-12)
	assert.InDelta(t, 0.16, BrierScore([]Prediction{{Predicted: 0.6, Actual: true}}), 1e-12)
}

func TestBrierScoreEmptyIsWorstCase(t *testing.T) {
	assert.Equal(t, 1.0, BrierScore(nil))
	assert.Equal(t, 1.0, BrierScore([]Prediction{}))
}

func TestBrierScorePerfectAndWorst(t *testing.T) {
	perfect := []Prediction{
		{Predicted: 1, Actual: true},
		{Predicted: 0, Actual: false},
	}
	assert.Equal(t, 0.0, BrierScore(perfect))

	worst := []Prediction{
		{Predicted: 0, Actual: true},
		{Predicted: 1, Actual: false},
	}
	assert.Equal(t, 1.0, BrierScore(worst))
}

func TestBrierScoreIsMeanOverEntries(t *testing.T) {
	preds := []Prediction{
		{Predicted: 0.7, Actual: true},  // 0.09
		{Predicted: 0.2, Actual: true},  // 0.64
		{Predicted: 0.5, Actual: false}, // 0.25
	}
	assert.InDelta(t, (0.09+0.64+0.25)/3, BrierScore(preds), 1e-12)
}

func TestBrierScoreBounded(t *testing.T) {
	for i := 0; i <= 100; i++ {
		p := float64(i) / 100
		for _, actual := range []bool{true, false} {
			s := BrierScore([]Prediction{{Predicted: p, Actual: actual}})
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			if s == 0 {
				assert.Equal(t, outcome(actual), p, "zero score requires an exact match")
			}
		}
	}
}

func TestRunningBrier(t *testing.T) {
	preds := []Prediction{
		{Predicted: 0.7, Actual: true},
		{Predicted: 0.3, Actual: true},
	}
	got := RunningBrier(preds)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.09, got[0], 1e-12)
	assert.InDelta(t, (0.09+0.49)/2, got[1], 1e-12)
	assert.Empty(t, RunningBrier(nil))
}

func TestValidatePredictions(t *testing.T) {
	require.NoError(t, ValidatePredictions([]Prediction{{Predicted: 0}, {Predicted: 1}}))
	assert.Error(t, ValidatePredictions([]Prediction{{Predicted: 1.01}}))
	assert.Error(t, ValidatePredictions([]Prediction{{Predicted: -0.1}}))
	assert.Error(t, ValidatePredictions([]Prediction{{Predicted: math.NaN()}}))
}
