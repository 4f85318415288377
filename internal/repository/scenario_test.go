package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/exercise"
	"ForecastDrill/pkg/cache"
	xhttp "ForecastDrill/pkg/http"
	"ForecastDrill/pkg/logger"
)

const poolYAML = `
scenarios:
  - id: s1
    level: 1
    kind: probability_update
    initial_question: Will it rain?
    initial_correct_probability: 0.3
    updates:
      - evidence_text: Clouds.
        correct_updated_probability: 0.6
    explanation: Update with evidence.
  - id: s2
    level: 2
    kind: calibration
    initial_question: Heads?
    explanation: Independent flips.
`

const poolJSON = `[
  {"id": "j1", "level": 3, "kind": "bias_detection", "initial_question": "Q?",
   "updates": [{"evidence_text": "E", "correct_updated_probability": 0.2}],
   "bias_tag": "base_rate_neglect"}
]`

func TestDecodeScenariosYAMLAndJSON(t *testing.T) {
	pool, err := DecodeScenarios([]byte(poolYAML))
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "s1", pool[0].ID)
	require.NotNil(t, pool[0].InitialCorrectProbability)
	assert.Equal(t, 0.3, *pool[0].InitialCorrectProbability)
	assert.Equal(t, 0.6, pool[0].Updates[0].CorrectUpdatedProbability)
	assert.Nil(t, pool[1].InitialCorrectProbability)

	pool, err = DecodeScenarios([]byte(poolJSON))
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, models.KindBiasDetection, pool[0].Kind)
	assert.Equal(t, models.BiasBaseRateNeglect, pool[0].BiasTag)
}

func TestDecodeScenariosRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":         "  ",
		"bad level":     `[{"id": "x", "level": 9, "kind": "calibration", "initial_question": "Q"}]`,
		"bad kind":      `[{"id": "x", "level": 1, "kind": "trivia", "initial_question": "Q"}]`,
		"bad truth":     `[{"id": "x", "level": 1, "kind": "calibration", "initial_question": "Q", "initial_correct_probability": 1.5}]`,
		"bad update":    `[{"id": "x", "level": 1, "kind": "calibration", "initial_question": "Q", "updates": [{"evidence_text": "E", "correct_updated_probability": -0.1}]}]`,
		"duplicate ids": `[{"id": "x", "level": 1, "kind": "calibration", "initial_question": "Q"}, {"id": "x", "level": 2, "kind": "calibration", "initial_question": "Q"}]`,
		"not yaml":      "scenarios: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeScenarios([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := DecodeScenarios([]byte(cases["bad truth"]))
	assert.True(t, errors.Is(err, exercise.ErrInvalidScenario))
}

func TestShippedScenarioPoolIsValid(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config", "scenarios.yaml"))
	if err != nil {
		t.Skip("config/scenarios.yaml not present")
	}
	pool, err := DecodeScenarios(data)
	require.NoError(t, err)

	levels := map[int]bool{}
	for _, s := range pool {
		levels[s.Level] = true
	}
	for lvl := 1; lvl <= 5; lvl++ {
		assert.True(t, levels[lvl], "no scenario for level %d", lvl)
	}
}

func TestFileScenarioProviderReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(poolYAML), 0o644))

	p := NewFileScenarioProvider(path, logger.Nop())
	pool, err := p.Scenarios(context.Background())
	require.NoError(t, err)
	assert.Len(t, pool, 2)

	require.NoError(t, os.WriteFile(path, []byte(poolJSON), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	pool, err = p.Scenarios(context.Background())
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "j1", pool[0].ID)

	// A broken edit keeps the last good pool.
	require.NoError(t, os.WriteFile(path, []byte("scenarios: ["), 0o644))
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	pool, err = p.Scenarios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "j1", pool[0].ID)
}

func TestFileScenarioProviderMissingFile(t *testing.T) {
	p := NewFileScenarioProvider(filepath.Join(t.TempDir(), "nope.yaml"), logger.Nop())
	_, err := p.Scenarios(context.Background())
	assert.Error(t, err)
}

func TestHTTPScenarioProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pool" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(poolJSON))
	}))
	defer srv.Close()

	client := xhttp.NewClient(xhttp.WithTimeout(time.Second))

	pool, err := NewHTTPScenarioProvider(srv.URL+"/pool", client).Scenarios(context.Background())
	require.NoError(t, err)
	require.Len(t, pool, 1)

	_, err = NewHTTPScenarioProvider(srv.URL+"/missing", client).Scenarios(context.Background())
	var statusErr *xhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

type countingProvider struct {
	calls atomic.Int32
	pool  []models.Scenario
	err   error
}

func (p *countingProvider) Scenarios(context.Context) ([]models.Scenario, error) {
	p.calls.Add(1)
	return p.pool, p.err
}

func TestCachedScenarioProvider(t *testing.T) {
	pool, err := DecodeScenarios([]byte(poolYAML))
	require.NoError(t, err)

	mem := cache.NewMemoryCache()
	defer mem.Close()
	upstream := &countingProvider{pool: pool}
	p := NewCachedScenarioProvider(upstream, mem, time.Minute, logger.Nop())

	ctx := context.Background()
	first, err := p.Scenarios(ctx)
	require.NoError(t, err)
	second, err := p.Scenarios(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 0.3, *second[0].InitialCorrectProbability)

	require.NoError(t, p.Invalidate(ctx))
	_, err = p.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestCachedScenarioProviderPropagatesUpstreamError(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	upstream := &countingProvider{err: errors.New("down")}
	p := NewCachedScenarioProvider(upstream, mem, time.Minute, logger.Nop())

	_, err := p.Scenarios(context.Background())
	assert.EqualError(t, err, "down")

	// The refresh lock is released after a failure.
	ok, err := mem.TryLock(context.Background(), scenarioLockKey, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
