package models

import "time"

// Estimate is one learner response at a step of an attempt.
type Estimate struct {
	StepIndex        int   `json:"step_index"`
	Percent          int   `json:"percent"`
	TimestampDeltaMs int64 `json:"timestamp_delta_ms"`
}

// Probability normalizes the collected percentage to [0,1].
func (e Estimate) Probability() float64 { return float64(e.Percent) / 100 }

// StepOutcome is the per-step feedback returned after an estimate is scored.
type StepOutcome struct {
	StepIndex              int       `json:"step_index"`
	Correct                bool      `json:"correct"`
	UserProbability        float64   `json:"user_probability"`
	GroundTruth            float64   `json:"ground_truth"`
	AbsoluteError          float64   `json:"absolute_error"`
	BiasesDetectedThisStep []BiasTag `json:"biases_detected_this_step"`
	HasMoreUpdates         bool      `json:"has_more_updates"`
}

// ExerciseResult is the record produced when an attempt completes.
type ExerciseResult struct {
	ScenarioID              string     `json:"scenario_id"`
	Correct                 bool       `json:"correct"`
	ResponseTimeMs          int64      `json:"response_time_ms"`
	FinalUserProbability    float64    `json:"final_user_probability"`
	FinalCorrectProbability float64    `json:"final_correct_probability"`
	BrierScore              float64    `json:"brier_score"`
	FinalStepIndex          int        `json:"final_step_index"`
	BiasesDetected          []BiasTag  `json:"biases_detected"`
	Estimates               []Estimate `json:"estimates"`
}

// ResultEvent wraps a finished result with the attempt context that sinks
// need to route it.
type ResultEvent struct {
	AttemptID   string         `json:"attempt_id"`
	LearnerID   string         `json:"learner_id"`
	Level       int            `json:"level"`
	Kind        ScenarioKind   `json:"kind"`
	Result      ExerciseResult `json:"result"`
	CompletedAt time.Time      `json:"completed_at"`
}
