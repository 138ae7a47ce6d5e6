// Package throttle provides the notification throttle cache: an associative
// map from throttle key to the last successful send time. The cache is a
// performance accelerant over the durable audit lookback — a cold cache
// after a restart degrades to extra queries, never to wrong throttling.
package throttle

import (
	"context"
	"time"
)

// Horizon is how long entries are kept before the sweep removes them. Any
// rule window longer than this would silently stop throttling, so rule
// windows must stay below it.
const Horizon = 48 * time.Hour

// Cache maps throttle keys to the last successful send timestamp.
type Cache interface {
	// Last returns the recorded send time for key, and whether one exists.
	Last(ctx context.Context, key string) (time.Time, bool, error)
	// MarkSent records a successful send for key at time t.
	MarkSent(ctx context.Context, key string, t time.Time) error
}
