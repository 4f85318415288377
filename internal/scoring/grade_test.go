package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeFor(t *testing.T) {
	cases := map[float64]Grade{
		0:     GradeSuperforecaster,
		0.049: GradeSuperforecaster,
		0.05:  GradeExcellent,
		0.1:   GradeGood,
		0.19:  GradeGood,
		0.2:   GradeAcceptable,
		0.3:   GradeNeedsImprovement,
		1:     GradeNeedsImprovement,
	}
	for score, want := range cases {
		assert.Equal(t, want, GradeFor(score), "score %v", score)
	}
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, TrendStable, TrendOf(nil))
	assert.Equal(t, TrendStable, TrendOf([]float64{0.3, 0.1, 0.2}))

	improving := []float64{0.4, 0.4, 0.4, 0.4, 0.4, 0.2, 0.2, 0.2, 0.2, 0.2}
	assert.Equal(t, TrendImproving, TrendOf(improving))

	declining := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.3, 0.3, 0.3, 0.3, 0.3}
	assert.Equal(t, TrendDeclining, TrendOf(declining))

	flat := []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0.205, 0.2, 0.2, 0.2, 0.2}
	assert.Equal(t, TrendStable, TrendOf(flat))
}
