// Package counter implements the per-window usage counters the rate
// limiter and abuse heuristics read. Counters are keyed by (identifier,
// kind, action, window) and reset when their window rolls over.
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsemetrics/guardrail/internal/models"
)

// Store is the counter contract. Increment must be atomic: it returns the
// already-incremented count so limit checks happen after the mutation,
// never before. Peek reads without consuming quota.
type Store interface {
	Increment(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (count int64, windowStart time.Time, err error)

	Peek(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (count int64, windowStart time.Time, err error)

	// Remove clears counters for an identifier. An empty action clears
	// every action's counters.
	Remove(ctx context.Context, identifier string, kind models.IdentifierKind, action string) error
}

// windowIndex buckets now into fixed windows since the epoch.
func windowIndex(now time.Time, window time.Duration) int64 {
	return now.Unix() / int64(window.Seconds())
}

func windowStart(index int64, window time.Duration) time.Time {
	return time.Unix(index*int64(window.Seconds()), 0)
}

func key(identifier string, kind models.IdentifierKind, action string, window time.Duration, index int64) string {
	return fmt.Sprintf("counter:%s:%s:%s:%d:%d", kind, identifier, action, int64(window.Seconds()), index)
}

func keyPattern(identifier string, kind models.IdentifierKind, action string) string {
	if action == "" {
		return fmt.Sprintf("counter:%s:%s:*", kind, identifier)
	}
	return fmt.Sprintf("counter:%s:%s:%s:*", kind, identifier, action)
}
