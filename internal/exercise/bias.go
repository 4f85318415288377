package exercise

import (
	"math"

	"ForecastDrill/internal/domain/models"
)

// Scoring thresholds. They are fixed policy, not learner-tunable.
const (
	// CorrectTolerance is the largest absolute error (exclusive) that still
	// counts a step as correct.
	CorrectTolerance = 0.15

	overconfidentLow   = 0.1
	overconfidentHigh  = 0.9
	overconfidentError = 0.2
	anchorPercent      = 50
	anchorDistance     = 0.2
	baseRateNeglectGap = 0.3
	thresholdEpsilon   = 1e-9
)

// DetectBiases flags bias patterns in a single estimate. These heuristics
// are approximate feedback signals, not a diagnosis: each rule looks at one
// estimate in isolation and several rules can fire together.
//
//   - overconfidence: an extreme estimate (<=10% or >=90%) more than 20
//     points away from the ground truth.
//   - anchoring_50: exactly 50% when the ground truth is more than 20 points
//     from 50%.
//   - base_rate_neglect: only for scenarios tagged with it, an error above
//     30 points.
func DetectBiases(s models.Scenario, percent int, groundTruth float64) []models.BiasTag {
	p := float64(percent) / 100
	diff := math.Abs(p - groundTruth)

	var tags []models.BiasTag
	if (p <= overconfidentLow || p >= overconfidentHigh) && exceeds(diff, overconfidentError) {
		tags = append(tags, models.BiasOverconfidence)
	}
	if percent == anchorPercent && exceeds(math.Abs(groundTruth-0.5), anchorDistance) {
		tags = append(tags, models.BiasAnchoring50)
	}
	if s.BiasTag == models.BiasBaseRateNeglect && exceeds(diff, baseRateNeglectGap) {
		tags = append(tags, models.BiasBaseRateNeglect)
	}
	return tags
}

// IsCorrect reports whether an estimate lies within CorrectTolerance of the
// ground truth.
func IsCorrect(p, groundTruth float64) bool {
	return math.Abs(p-groundTruth) < CorrectTolerance-thresholdEpsilon
}

// exceeds compares with a small epsilon so that values equal to a threshold
// in decimal (0.9-0.7) are not flagged because of binary rounding.
func exceeds(v, threshold float64) bool {
	return v > threshold+thresholdEpsilon
}
