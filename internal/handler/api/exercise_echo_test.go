package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/exercise"
	"ForecastDrill/internal/progress"
	"ForecastDrill/internal/usecase"
	xhttp "ForecastDrill/pkg/http"
	"ForecastDrill/pkg/http/middleware"
	"ForecastDrill/pkg/logger"
	"ForecastDrill/pkg/metrics"
)

const attemptID = "0b6f3b1e-7a55-4c39-8d0e-3f7c2a9e1d42"

type poolProvider []models.Scenario

func (p poolProvider) Scenarios(context.Context) ([]models.Scenario, error) { return p, nil }

type discardSink struct{}

func (discardSink) Deliver(context.Context, *models.ResultEvent) error { return nil }

type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func newTestEcho(t *testing.T, mw ...echo.MiddlewareFunc) (*echo.Echo, *progress.Tracker) {
	t.Helper()
	p := 0.4
	pool := poolProvider{{
		ID:                        "coin-streak",
		Level:                     1,
		Kind:                      models.KindCalibration,
		InitialQuestion:           "Will the next flip land heads?",
		InitialCorrectProbability: &p,
		Explanation:               "Flips are independent.",
	}}
	tracker := progress.NewTracker(1)
	trainer := usecase.NewTrainer(pool, discardSink{}, tracker, metrics.Nop{}, logger.Nop(), time.Minute,
		usecase.WithSelector(exercise.NewSelector(zeroRand{})),
		usecase.WithIDGenerator(func() string { return attemptID }),
	)

	e := echo.New()
	NewExerciseEchoHandler(logger.Nop(), trainer, mw...).RegisterRoutes(e)
	return e, tracker
}

func call(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func TestAttemptLifecycle(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := call(e, http.MethodPost, "/api/attempts", `{"learner_id":"ana","level":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap struct {
		ID   string `json:"id"`
		View struct {
			ScenarioID string `json:"scenario_id"`
		} `json:"view"`
	}
	decodeData(t, rec, &snap)
	assert.Equal(t, attemptID, snap.ID)
	assert.Equal(t, "coin-streak", snap.View.ScenarioID)
	assert.Contains(t, rec.Body.String(), `"state":"awaiting_estimate"`)

	rec = call(e, http.MethodGet, "/api/attempts/"+attemptID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(e, http.MethodPost, "/api/attempts/"+attemptID+"/advance", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INVALID_STATE")

	rec = call(e, http.MethodPost, "/api/attempts/"+attemptID+"/estimates", `{"probability":140}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_INVALID_PROBABILITY")

	rec = call(e, http.MethodPost, "/api/attempts/"+attemptID+"/estimates", `{"probability":40}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out models.StepOutcome
	decodeData(t, rec, &out)
	assert.True(t, out.Correct)
	assert.False(t, out.HasMoreUpdates)

	rec = call(e, http.MethodPost, "/api/attempts/"+attemptID+"/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"completed"`)
	assert.Contains(t, rec.Body.String(), "Flips are independent.")
}

func TestStartAttemptErrors(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := call(e, http.MethodPost, "/api/attempts", `{"learner_id":"ana","level":4}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NO_SCENARIO")

	rec = call(e, http.MethodPost, "/api/attempts", `{"learner_id":"ana","level":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_LTE")
}

func TestAttemptPathValidation(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := call(e, http.MethodGet, "/api/attempts/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_UUID")

	rec = call(e, http.MethodGet, "/api/attempts/"+attemptID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = call(e, http.MethodPost, "/api/attempts/"+attemptID+"/estimates", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
}

func TestScoringEndpoints(t *testing.T) {
	e, _ := newTestEcho(t)

	rec := call(e, http.MethodPost, "/api/scoring/brier",
		`{"predictions":[{"predicted":0.9,"actual":true},{"predicted":0.1,"actual":false}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var br BrierResponse
	decodeData(t, rec, &br)
	assert.InDelta(t, 0.01, br.BrierScore, 1e-9)
	assert.Equal(t, 2, br.Count)

	rec = call(e, http.MethodPost, "/api/scoring/brier", `{"predictions":[{"predicted":1.5,"actual":true}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(e, http.MethodPost, "/api/scoring/calibration", `{"predictions":[{"predicted":1.0,"actual":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var bins []map[string]interface{}
	decodeData(t, rec, &bins)
	require.Len(t, bins, 10)
	assert.EqualValues(t, 1, bins[9]["count"])
}

func TestProgressEndpoint(t *testing.T) {
	e, tracker := newTestEcho(t)

	rec := call(e, http.MethodGet, "/api/progress/ana", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, tracker.Record(context.Background(), &models.ResultEvent{
		AttemptID: "a1",
		LearnerID: "ana",
		Level:     1,
		Result:    models.ExerciseResult{ScenarioID: "coin-streak", Correct: true, FinalUserProbability: 0.4, BrierScore: 0.16},
	}))
	rec = call(e, http.MethodGet, "/api/progress/ana", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum progress.Summary
	decodeData(t, rec, &sum)
	assert.Equal(t, 1, sum.ExercisesCompleted)
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
}

func TestRateLimitedGroup(t *testing.T) {
	e, _ := newTestEcho(t, middleware.RateLimit(denyAll{}, middleware.RealIPKey, RateLimited))

	rec := call(e, http.MethodGet, "/api/progress/ana", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
}
