package repository

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/internal/exercise"
)

var validate = validator.New()

type scenarioDocument struct {
	Scenarios []models.Scenario `yaml:"scenarios"`
}

// DecodeScenarios parses a scenario pool from YAML or JSON. The document is
// either a bare list or an object with a "scenarios" list. Every scenario is
// validated and ids must be unique.
func DecodeScenarios(data []byte) ([]models.Scenario, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("scenario document is empty")
	}

	var pool []models.Scenario
	if data[0] == '[' || data[0] == '-' {
		if err := yaml.Unmarshal(data, &pool); err != nil {
			return nil, fmt.Errorf("decode scenario list: %w", err)
		}
	} else {
		var doc scenarioDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode scenario document: %w", err)
		}
		pool = doc.Scenarios
	}

	seen := make(map[string]struct{}, len(pool))
	for i := range pool {
		s := pool[i]
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("%w: scenario #%d (%s): %v", exercise.ErrInvalidScenario, i, s.ID, err)
		}
		if err := exercise.ValidateScenario(s); err != nil {
			return nil, err
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", exercise.ErrInvalidScenario, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return pool, nil
}
