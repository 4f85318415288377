// Package scoring computes forecast accuracy metrics over probability
// predictions: Brier score, calibration bins, and the derived grade and
// trend shown on the training dashboard.
package scoring

import (
	"fmt"
	"math"
)

// Prediction pairs a forecast probability with the observed binary outcome.
type Prediction struct {
	Predicted float64 `json:"predicted" validate:"gte=0,lte=1"`
	Actual    bool    `json:"actual"`
}

// EmptyBrierScore is returned for an empty prediction set. Callers that have
// not collected data yet get the worst possible score instead of an error.
const EmptyBrierScore = 1.0

// BrierScore returns the mean squared error between each predicted
// probability and its outcome (1 when actual, 0 otherwise).
// 0 is a perfect forecast and 1 is maximally wrong.
func BrierScore(predictions []Prediction) float64 {
	if len(predictions) == 0 {
		return EmptyBrierScore
	}

	var sum float64
	for _, p := range predictions {
		diff := p.Predicted - outcome(p.Actual)
		sum += diff * diff
	}
	return sum / float64(len(predictions))
}

// RunningBrier returns the Brier score of every prefix of predictions, so
// element i scores predictions[:i+1].
func RunningBrier(predictions []Prediction) []float64 {
	out := make([]float64, 0, len(predictions))
	var sum float64
	for i, p := range predictions {
		diff := p.Predicted - outcome(p.Actual)
		sum += diff * diff
		out = append(out, sum/float64(i+1))
	}
	return out
}

// ValidatePredictions reports the first prediction whose probability is not
// a finite number in [0,1].
func ValidatePredictions(predictions []Prediction) error {
	for i, p := range predictions {
		if math.IsNaN(p.Predicted) || p.Predicted < 0 || p.Predicted > 1 {
			return fmt.Errorf("prediction %d: probability %v outside [0,1]", i, p.Predicted)
		}
	}
	return nil
}

func outcome(actual bool) float64 {
	if actual {
		return 1
	}
	return 0
}
