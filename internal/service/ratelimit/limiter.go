package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*visitor
	rps   rate.Limit
	burst int
	now   func() time.Time
}

// New creates a limiter allowing rps sustained requests per key with the
// given burst.
func New(rps float64, burst int) *Limiter {
	return newWithClock(rps, burst, time.Now)
}

func newWithClock(rps float64, burst int, now func() time.Time) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{m: make(map[string]*visitor), rps: rate.Limit(rps), burst: burst, now: now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	v, ok := l.m[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// Forget drops buckets idle for longer than idle.
func (l *Limiter) Forget(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.m {
		if v.lastSeen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Size reports how many keys are tracked.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
