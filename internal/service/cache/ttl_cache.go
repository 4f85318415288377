package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is an in-process map whose entries expire. Reads refresh nothing;
// callers that want sliding expiry call Touch.
type TTLCache[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
}

// NewTTLCache creates a cache whose entries live for ttl. A ttl <= 0 means
// entries never expire.
func NewTTLCache[V any](ttl time.Duration, now func() time.Time) *TTLCache[V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{m: make(map[string]entry[V]), ttl: ttl, now: now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && c.expired(cur) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.v, true
}

func (c *TTLCache[V]) Set(key string, v V) {
	c.mu.Lock()
	c.m[key] = entry[V]{v: v, exp: c.deadline()}
	c.mu.Unlock()
}

// Touch pushes the expiry of key forward by one ttl.
func (c *TTLCache[V]) Touch(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || c.expired(e) {
		return false
	}
	e.exp = c.deadline()
	c.m[key] = e
	return true
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Len counts entries including ones that expired but were not swept yet.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Sweep removes expired entries and returns how many it removed.
func (c *TTLCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if c.expired(e) {
			delete(c.m, k)
			n++
		}
	}
	return n
}

func (c *TTLCache[V]) deadline() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *TTLCache[V]) expired(e entry[V]) bool {
	return !e.exp.IsZero() && c.now().After(e.exp)
}
