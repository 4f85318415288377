package models

import "ForecastDrill/internal/scoring"

// StartAttemptRequest starts a new attempt for a learner. Level 0 means the
// learner's current level.
type StartAttemptRequest struct {
	LearnerID string `json:"learner_id" default:"anonymous" validate:"required,max=128"`
	Level     int    `json:"level" validate:"gte=0,lte=5"`
}

// AttemptPathRequest binds the attempt id from the route.
type AttemptPathRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// SubmitEstimateRequest carries a probability as a 0-100 integer.
type SubmitEstimateRequest struct {
	ID          string `param:"id" validate:"required,uuid"`
	Probability *int   `json:"probability" validate:"required"`
}

// PredictionsRequest carries a prediction set for the scoring endpoints.
type PredictionsRequest struct {
	Predictions []scoring.Prediction `json:"predictions" validate:"dive"`
}

// ProgressRequest binds the learner id from the route.
type ProgressRequest struct {
	LearnerID string `param:"learner" validate:"required,max=128"`
}
