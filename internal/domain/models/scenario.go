package models

import "strconv"

// ScenarioKind classifies what a scenario trains.
type ScenarioKind string

const (
	KindProbabilityUpdate ScenarioKind = "probability_update"
	KindCalibration       ScenarioKind = "calibration"
	KindBiasDetection     ScenarioKind = "bias_detection"
)

// Valid reports whether k is one of the known kinds.
func (k ScenarioKind) Valid() bool {
	switch k {
	case KindProbabilityUpdate, KindCalibration, KindBiasDetection:
		return true
	}
	return false
}

// BiasTag labels a cognitive bias pattern.
type BiasTag string

const (
	BiasOverconfidence  BiasTag = "overconfidence"
	BiasAnchoring50     BiasTag = "anchoring_50"
	BiasBaseRateNeglect BiasTag = "base_rate_neglect"
)

// Scenario is an immutable exercise definition. Ground-truth probabilities
// are never shown to the learner while the attempt is running.
type Scenario struct {
	ID                        string           `json:"id" yaml:"id" validate:"required"`
	Level                     int              `json:"level" yaml:"level" validate:"gte=1,lte=5"`
	Kind                      ScenarioKind     `json:"kind" yaml:"kind" validate:"required,oneof=probability_update calibration bias_detection"`
	Topic                     string           `json:"topic,omitempty" yaml:"topic,omitempty"`
	Narrative                 string           `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	InitialQuestion           string           `json:"initial_question" yaml:"initial_question" validate:"required"`
	InitialCorrectProbability *float64         `json:"initial_correct_probability,omitempty" yaml:"initial_correct_probability,omitempty" validate:"omitempty,gte=0,lte=1"`
	Updates                   []EvidenceUpdate `json:"updates,omitempty" yaml:"updates,omitempty" validate:"dive"`
	Explanation               string           `json:"explanation" yaml:"explanation"`
	BiasTag                   BiasTag          `json:"bias_tag,omitempty" yaml:"bias_tag,omitempty"`
	BiasName                  string           `json:"bias_name,omitempty" yaml:"bias_name,omitempty"`
	BiasExplanation           string           `json:"bias_explanation,omitempty" yaml:"bias_explanation,omitempty"`
}

// EvidenceUpdate is one piece of evidence revealed after the initial estimate.
type EvidenceUpdate struct {
	EvidenceText              string  `json:"evidence_text" yaml:"evidence_text" validate:"required"`
	CorrectUpdatedProbability float64 `json:"correct_updated_probability" yaml:"correct_updated_probability" validate:"gte=0,lte=1"`
}

// Steps is the number of estimates an attempt on this scenario collects.
func (s Scenario) Steps() int { return len(s.Updates) + 1 }

// LevelName returns the display name of a difficulty tier.
func LevelName(level int) string {
	switch level {
	case 1:
		return "Beginner"
	case 2:
		return "Intermediate"
	case 3:
		return "Advanced"
	case 4:
		return "Expert"
	case 5:
		return "Superforecaster"
	default:
		return "Level " + strconv.Itoa(level)
	}
}
