package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/exercise"
	"ForecastDrill/internal/progress"
	"ForecastDrill/internal/scoring"
	"ForecastDrill/internal/usecase"
	xhttp "ForecastDrill/pkg/http"
	xlogger "ForecastDrill/pkg/logger"
)

// Trainer is the use case the exercise routes drive.
type Trainer interface {
	StartAttempt(ctx context.Context, learnerID string, level int) (usecase.AttemptSnapshot, error)
	GetAttempt(ctx context.Context, id string) (usecase.AttemptSnapshot, error)
	SubmitEstimate(ctx context.Context, id string, percent int) (models.StepOutcome, error)
	Advance(ctx context.Context, id string) (usecase.AdvanceOutcome, error)
	Brier(predictions []scoring.Prediction) (float64, error)
	Calibration(predictions []scoring.Prediction) ([scoring.NumBins]scoring.CalibrationBin, error)
	Progress(learnerID string) (progress.Summary, error)
}

// BrierResponse is the body of the Brier scoring endpoint.
type BrierResponse struct {
	BrierScore float64       `json:"brier_score"`
	Grade      scoring.Grade `json:"grade"`
	Count      int           `json:"count"`
}

// ExerciseEchoHandler serves attempts, scoring and progress under /api.
type ExerciseEchoHandler struct {
	logger  *xlogger.Logger
	trainer Trainer
	mw      []echo.MiddlewareFunc
}

// NewExerciseEchoHandler builds the handler. mw is applied to the /api group
// only, so health and metrics endpoints stay unthrottled.
func NewExerciseEchoHandler(logger *xlogger.Logger, trainer Trainer, mw ...echo.MiddlewareFunc) *ExerciseEchoHandler {
	return &ExerciseEchoHandler{logger: logger, trainer: trainer, mw: mw}
}

func (h *ExerciseEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.mw...)
	g.POST("/attempts", h.StartAttempt)
	g.GET("/attempts/:id", h.GetAttempt)
	g.POST("/attempts/:id/estimates", h.SubmitEstimate)
	g.POST("/attempts/:id/advance", h.Advance)
	g.POST("/scoring/brier", h.Brier)
	g.POST("/scoring/calibration", h.Calibration)
	g.GET("/progress/:learner", h.Progress)
}

func (h *ExerciseEchoHandler) StartAttempt(c echo.Context) error {
	req := &models.StartAttemptRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trainer.StartAttempt(c.Request().Context(), req.LearnerID, req.Level)
	if err != nil {
		return h.fail(c, "start attempt", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *ExerciseEchoHandler) GetAttempt(c echo.Context) error {
	req := &models.AttemptPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trainer.GetAttempt(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "get attempt", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ExerciseEchoHandler) SubmitEstimate(c echo.Context) error {
	req := &models.SubmitEstimateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trainer.SubmitEstimate(c.Request().Context(), req.ID, *req.Probability)
	if err != nil {
		return h.fail(c, "submit estimate", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ExerciseEchoHandler) Advance(c echo.Context) error {
	req := &models.AttemptPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trainer.Advance(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "advance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ExerciseEchoHandler) Brier(c echo.Context) error {
	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	score, err := h.trainer.Brier(req.Predictions)
	if err != nil {
		return h.fail(c, "brier", err)
	}
	return xhttp.SuccessResponse(c, BrierResponse{
		BrierScore: score,
		Grade:      scoring.GradeFor(score),
		Count:      len(req.Predictions),
	})
}

func (h *ExerciseEchoHandler) Calibration(c echo.Context) error {
	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	bins, err := h.trainer.Calibration(req.Predictions)
	if err != nil {
		return h.fail(c, "calibration", err)
	}
	return xhttp.SuccessResponse(c, bins)
}

func (h *ExerciseEchoHandler) Progress(c echo.Context) error {
	req := &models.ProgressRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trainer.Progress(req.LearnerID)
	if err != nil {
		return h.fail(c, "progress", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, res)
}

// RateLimited answers a throttled request.
func RateLimited(c echo.Context) error {
	return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
}

func (h *ExerciseEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, exercise.ErrInvalidStateTransition):
		return xhttp.ConflictError("ERR_INVALID_STATE", err.Error())
	case errors.Is(err, exercise.ErrInvalidProbabilityInput):
		return xhttp.NewAppError("ERR_INVALID_PROBABILITY", "probability", err.Error(), http.StatusBadRequest).
			WithParam("min", 0).WithParam("max", 100)
	case errors.Is(err, usecase.ErrInvalidPredictions):
		return xhttp.NewAppError("ERR_INVALID_PREDICTIONS", "predictions", err.Error(), http.StatusBadRequest)
	case errors.Is(err, exercise.ErrNoScenarioAvailable):
		return xhttp.NewAppError("ERR_NO_SCENARIO", "level", err.Error(), http.StatusNotFound)
	case errors.Is(err, usecase.ErrAttemptNotFound):
		return xhttp.NotFoundError("attempt not found")
	case errors.Is(err, progress.ErrUnknownLearner):
		return xhttp.NotFoundError("learner has no completed exercises")
	default:
		return xhttp.InternalError("something went wrong").WithError(err)
	}
}
