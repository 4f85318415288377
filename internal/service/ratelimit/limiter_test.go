package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newWithClock(1, 2, func() time.Time { return now })

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiterForget(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newWithClock(5, 5, func() time.Time { return now })

	l.Allow("old")
	now = now.Add(10 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Forget(5*time.Minute))
	assert.Equal(t, 1, l.Size())
}
