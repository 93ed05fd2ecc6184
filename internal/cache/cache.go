// Package cache provides an in-process TTL cache for completed request
// results. Expired entries read as misses and are evicted lazily on access;
// a background sweeper can be started for long-running servers so expired
// entries do not accumulate between reads.
package cache

import (
	"sync"
	"time"
)

// TTL is an in-process rag.ResultCache. Safe for concurrent use.
type TTL struct {
	mu sync.Mutex

	// entries maps fingerprint to value and expiry.
	entries map[string]entry

	// hits and misses count Get outcomes, exposed via Stats.
	hits   int64
	misses int64

	// now is the clock, swappable in tests.
	now func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	// Entries is the current entry count, expired entries included until swept.
	Entries int
	// Hits is the number of Gets that returned a live value.
	Hits int64
	// Misses is the number of Gets that found nothing or an expired entry.
	Misses int64
}

// New constructs an empty TTL cache.
func New() *TTL {
	return &TTL{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key if present and unexpired. An expired entry
// is evicted on the spot and reported as a miss.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key for the given lifetime, replacing any existing
// entry. A non-positive ttl stores nothing.
func (c *TTL) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Stats returns current cache counters.
func (c *TTL) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// sweep removes all expired entries.
func (c *TTL) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// StartSweeper launches a goroutine that sweeps expired entries every
// interval. The returned stop function terminates the goroutine; call it
// during shutdown.
func (c *TTL) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
