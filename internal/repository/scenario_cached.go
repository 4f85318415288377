package repository

import (
	"context"
	"errors"
	"time"

	"ForecastDrill/internal/domain/models"
	domrepo "ForecastDrill/internal/domain/repository"
	"ForecastDrill/pkg/cache"
	"ForecastDrill/pkg/logger"
)

const (
	scenarioPoolKey = "scenarios:pool"
	scenarioLockKey = "scenarios:refresh"
	lockWait        = 50 * time.Millisecond
	lockTTL         = 10 * time.Second
)

// CachedScenarioProvider keeps the pool from an upstream provider in a cache
// service. One caller refreshes at a time; the others wait briefly for its
// write and otherwise fall through to the upstream themselves.
type CachedScenarioProvider struct {
	upstream domrepo.ScenarioProvider
	cache    cache.Service
	ttl      time.Duration
	log      *logger.Logger
}

func NewCachedScenarioProvider(upstream domrepo.ScenarioProvider, c cache.Service, ttl time.Duration, log *logger.Logger) *CachedScenarioProvider {
	return &CachedScenarioProvider{
		upstream: upstream,
		cache:    c,
		ttl:      ttl,
		log:      log.With(logger.String("component", "scenario_cache")),
	}
}

func (p *CachedScenarioProvider) Scenarios(ctx context.Context) ([]models.Scenario, error) {
	if pool, ok := p.cached(ctx); ok {
		return pool, nil
	}

	locked, err := p.cache.TryLock(ctx, scenarioLockKey, lockTTL)
	if err != nil {
		p.log.Warn("scenario cache lock failed", logger.Error(err))
	}
	if err == nil && !locked {
		select {
		case <-time.After(lockWait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if pool, ok := p.cached(ctx); ok {
			return pool, nil
		}
	}
	if locked {
		defer func() {
			if err := p.cache.Unlock(context.WithoutCancel(ctx), scenarioLockKey); err != nil {
				p.log.Warn("scenario cache unlock failed", logger.Error(err))
			}
		}()
	}

	pool, err := p.upstream.Scenarios(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, scenarioPoolKey, pool, p.ttl); err != nil {
		p.log.Warn("scenario cache write failed", logger.Error(err))
	}
	return pool, nil
}

// Invalidate drops the cached pool so the next call reloads it.
func (p *CachedScenarioProvider) Invalidate(ctx context.Context) error {
	return p.cache.Delete(ctx, scenarioPoolKey)
}

func (p *CachedScenarioProvider) cached(ctx context.Context) ([]models.Scenario, bool) {
	var pool []models.Scenario
	err := p.cache.Get(ctx, scenarioPoolKey, &pool)
	if err == nil {
		return pool, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		p.log.Warn("scenario cache read failed", logger.Error(err))
	}
	return nil, false
}
