package exercise

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ForecastDrill/internal/domain/models"
)

// RandSource is the random source used to pick scenarios.
// *rand.Rand satisfies it.
type RandSource interface {
	Intn(n int) int
}

// Selector picks a random scenario of a given level from a pool.
// It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rnd RandSource
}

// NewSelector returns a Selector over rnd, or over a time-seeded source
// when rnd is nil.
func NewSelector(rnd RandSource) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{rnd: rnd}
}

// Pick returns a uniformly chosen scenario with the requested level.
func (s *Selector) Pick(pool []models.Scenario, level int) (models.Scenario, error) {
	candidates := FilterByLevel(pool, level)
	if len(candidates) == 0 {
		return models.Scenario{}, fmt.Errorf("%w: level %d", ErrNoScenarioAvailable, level)
	}

	s.mu.Lock()
	idx := s.rnd.Intn(len(candidates))
	s.mu.Unlock()

	return candidates[idx], nil
}

// FilterByLevel keeps the scenarios of one level, preserving pool order.
func FilterByLevel(pool []models.Scenario, level int) []models.Scenario {
	out := make([]models.Scenario, 0, len(pool))
	for _, sc := range pool {
		if sc.Level == level {
			out = append(out, sc)
		}
	}
	return out
}
