package scoring

import "fmt"

// NumBins is the fixed number of calibration buckets.
const NumBins = 10

// CalibrationBin is one bucket of a reliability diagram.
type CalibrationBin struct {
	Label           string  `json:"label"`
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	PredictedMean   float64 `json:"predicted_mean"`
	ActualFrequency float64 `json:"actual_frequency"`
	Count           int     `json:"count"`
}

// Contains reports whether p falls in the bucket. Buckets are
// [lower,upper) except the last one, which also holds upper.
func (b CalibrationBin) Contains(p float64) bool {
	if p < b.Lower {
		return false
	}
	if b.Upper >= 1 {
		return p <= b.Upper
	}
	return p < b.Upper
}

// Calibration groups predictions into ten fixed-width buckets over [0,1]
// and reports, per bucket, the mean predicted probability and the observed
// frequency of positive outcomes. Empty buckets are kept (count 0, mean at
// the bucket midpoint) so the output shape never changes.
func Calibration(predictions []Prediction) [NumBins]CalibrationBin {
	var bins [NumBins]CalibrationBin
	for i := range bins {
		lo := float64(i) / NumBins
		hi := float64(i+1) / NumBins
		bins[i] = CalibrationBin{
			Label: fmt.Sprintf("%d-%d%%", i*10, (i+1)*10),
			Lower: lo,
			Upper: hi,
		}
	}

	var (
		sums      [NumBins]float64
		positives [NumBins]int
	)
	for _, p := range predictions {
		idx := binIndex(bins, p.Predicted)
		if idx < 0 {
			continue
		}
		bins[idx].Count++
		sums[idx] += p.Predicted
		if p.Actual {
			positives[idx]++
		}
	}

	for i := range bins {
		if bins[i].Count == 0 {
			bins[i].PredictedMean = (bins[i].Lower + bins[i].Upper) / 2
			continue
		}
		n := float64(bins[i].Count)
		bins[i].PredictedMean = sums[i] / n
		bins[i].ActualFrequency = float64(positives[i]) / n
	}
	return bins
}

// binIndex returns -1 for probabilities outside [0,1].
func binIndex(bins [NumBins]CalibrationBin, p float64) int {
	for i := range bins {
		if bins[i].Contains(p) {
			return i
		}
	}
	return -1
}
