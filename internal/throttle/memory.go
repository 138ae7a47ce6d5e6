package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local throttle cache with TTL-based sweeping.
// The clock is injected so tests can drive expiry deterministically.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryCache creates an in-memory throttle cache. A nil clock defaults
// to time.Now.
func NewMemoryCache(clock func() time.Time) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{entries: make(map[string]time.Time), now: clock}
}

// Last returns the recorded send time for key. Entries older than Horizon
// count as absent even before the sweep catches them.
func (c *MemoryCache) Last(_ context.Context, key string) (time.Time, bool, error) {
	c.mu.RLock()
	t, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(t) > Horizon {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// MarkSent records a successful send for key.
func (c *MemoryCache) MarkSent(_ context.Context, key string, t time.Time) error {
	c.mu.Lock()
	c.entries[key] = t
	c.mu.Unlock()
	return nil
}

// Sweep removes entries older than Horizon and returns how many it dropped.
func (c *MemoryCache) Sweep() int {
	cutoff := c.now().Add(-Horizon)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, t := range c.entries {
		if t.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps periodically until ctx is cancelled.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
