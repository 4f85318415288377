package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(append([]MemoryOption{WithMemoryClock(clock.Now), WithMemoryCleanup(time.Hour)}, opts...)...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clock
}

func TestMemoryRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "k", payload{Name: "a", Score: 0.25}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Score: 0.25}, got)

	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.JSONEq(t, `{"name":"a","score":0.25}`, s)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, _ = mc.Exists(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, mc.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", "1", time.Hour))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Hour))
	clock.Advance(time.Second)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	clock.Advance(time.Second)

	require.NoError(t, mc.Set(ctx, "c", "3", time.Hour))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	ok, err := mc.TryLock(ctx, "lock", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "lock", time.Second)
	assert.False(t, ok)

	clock.Advance(2 * time.Second)
	ok, _ = mc.TryLock(ctx, "lock", time.Second)
	assert.True(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, _ = mc.TryLock(ctx, "lock", time.Second)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "scenarios:pool", Key("scenarios", "pool"))
}
