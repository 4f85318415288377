package scoring

// Grade is a qualitative calibration tier derived from a Brier score.
type Grade string

const (
	GradeSuperforecaster  Grade = "superforecaster"
	GradeExcellent        Grade = "excellent"
	GradeGood             Grade = "good"
	GradeAcceptable       Grade = "acceptable"
	GradeNeedsImprovement Grade = "needs_improvement"
)

// GradeFor maps a Brier score onto a calibration tier.
func GradeFor(score float64) Grade {
	switch {
	case score < 0.05:
		return GradeSuperforecaster
	case score < 0.1:
		return GradeExcellent
	case score < 0.2:
		return GradeGood
	case score < 0.3:
		return GradeAcceptable
	default:
		return GradeNeedsImprovement
	}
}

// Trend describes the direction of a Brier score series. Lower scores are
// better, so a falling series is improving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

const (
	trendWindow   = 5
	trendDeadBand = 0.01
)

// TrendOf compares the mean of the last five scores with the mean of the
// five before them. With fewer than six scores there is nothing to compare
// against and the series is stable.
func TrendOf(history []float64) Trend {
	if len(history) == 0 {
		return TrendStable
	}

	recentStart := max(0, len(history)-trendWindow)
	recent := mean(history[recentStart:])

	olderStart := max(0, len(history)-2*trendWindow)
	older := recent
	if olderStart < recentStart {
		older = mean(history[olderStart:recentStart])
	}

	switch improvement := older - recent; {
	case improvement > trendDeadBand:
		return TrendImproving
	case improvement < -trendDeadBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
