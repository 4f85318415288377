package repository

import (
	"context"
	"fmt"

	"ForecastDrill/internal/domain/models"
	xhttp "ForecastDrill/pkg/http"
)

// HTTPScenarioProvider fetches the pool from a remote URL on every call.
// Wrap it in a CachedScenarioProvider to avoid hitting the source per
// attempt.
type HTTPScenarioProvider struct {
	url    string
	client *xhttp.Client
}

func NewHTTPScenarioProvider(url string, client *xhttp.Client) *HTTPScenarioProvider {
	return &HTTPScenarioProvider{url: url, client: client}
}

func (p *HTTPScenarioProvider) Scenarios(ctx context.Context) ([]models.Scenario, error) {
	var body []byte
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     p.url,
		Headers: map[string]string{"Accept": "application/json, application/yaml"},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("fetch scenarios from %s: %w", p.url, err)
	}
	return DecodeScenarios(body)
}
