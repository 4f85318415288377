package exercise

import "ForecastDrill/internal/domain/models"

// RevealedEvidence is a revealed evidence update together with the estimate
// the learner held before seeing it.
type RevealedEvidence struct {
	StepIndex     int    `json:"step_index"`
	Text          string `json:"text"`
	PriorEstimate int    `json:"prior_estimate"`
}

// View is a learner-facing snapshot of an attempt. Ground truth only
// appears through the feedback of steps that were already scored.
type View struct {
	ScenarioID  string              `json:"scenario_id"`
	Level       int                 `json:"level"`
	LevelName   string              `json:"level_name"`
	Kind        models.ScenarioKind `json:"kind"`
	Topic       string              `json:"topic,omitempty"`
	Narrative   string              `json:"narrative,omitempty"`
	State       State               `json:"state"`
	StepIndex   int                 `json:"step_index"`
	TotalSteps  int                 `json:"total_steps"`
	Prompt      string              `json:"prompt"`
	Evidence    []RevealedEvidence  `json:"evidence"`
	LastOutcome *models.StepOutcome `json:"last_outcome,omitempty"`

	// Set once completed.
	Result          *models.ExerciseResult `json:"result,omitempty"`
	Explanation     string                 `json:"explanation,omitempty"`
	BiasName        string                 `json:"bias_name,omitempty"`
	BiasExplanation string                 `json:"bias_explanation,omitempty"`
}

// View builds the current snapshot.
func (a *Attempt) View() View {
	s := a.scenario
	v := View{
		ScenarioID: s.ID,
		Level:      s.Level,
		LevelName:  models.LevelName(s.Level),
		Kind:       s.Kind,
		Topic:      s.Topic,
		Narrative:  s.Narrative,
		State:      a.state,
		StepIndex:  a.step,
		TotalSteps: s.Steps(),
		Prompt:     Prompt(s, a.step),
		Evidence:   make([]RevealedEvidence, 0, a.step),
	}

	for i := 1; i <= a.step; i++ {
		v.Evidence = append(v.Evidence, RevealedEvidence{
			StepIndex:     i,
			Text:          Prompt(s, i),
			PriorEstimate: a.estimates[i-1].Percent,
		})
	}

	if a.state != StateAwaitingEstimate && len(a.outcomes) > 0 {
		last := a.outcomes[len(a.outcomes)-1]
		v.LastOutcome = &last
	}
	if a.result != nil {
		v.Result = a.result
		v.Explanation = s.Explanation
		v.BiasName = s.BiasName
		v.BiasExplanation = s.BiasExplanation
	}
	return v
}
