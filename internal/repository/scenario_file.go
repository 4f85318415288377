package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"ForecastDrill/internal/domain/models"
	"ForecastDrill/pkg/logger"
)

// FileScenarioProvider serves the pool from a YAML or JSON file. The file is
// re-read when its modification time changes; a broken edit keeps serving
// the last good pool.
type FileScenarioProvider struct {
	path string
	log  *logger.Logger

	mu      sync.Mutex
	modTime time.Time
	pool    []models.Scenario
}

func NewFileScenarioProvider(path string, log *logger.Logger) *FileScenarioProvider {
	return &FileScenarioProvider{
		path: path,
		log:  log.With(logger.String("component", "scenario_file"), logger.String("path", path)),
	}
}

func (p *FileScenarioProvider) Scenarios(ctx context.Context) ([]models.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		if p.pool != nil {
			p.log.Warn("scenario file unavailable, serving cached pool", logger.Error(err))
			return p.pool, nil
		}
		return nil, fmt.Errorf("stat scenario file: %w", err)
	}
	if p.pool != nil && info.ModTime().Equal(p.modTime) {
		return p.pool, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	pool, err := DecodeScenarios(data)
	if err != nil {
		if p.pool != nil {
			p.log.Error("scenario file invalid, serving previous pool", logger.Error(err))
			return p.pool, nil
		}
		return nil, err
	}

	p.pool = pool
	p.modTime = info.ModTime()
	p.log.Info("scenario pool loaded", logger.Int("scenarios", len(pool)))
	return p.pool, nil
}
