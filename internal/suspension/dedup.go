package suspension

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/storage"
)

// DedupStore enforces the one-warning-per-identifier-per-day rule.
// Acquire returns true for the first caller of a key; everyone else loses
// until the ttl runs out.
type DedupStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryDedup is the in-process implementation.
type MemoryDedup struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clk     clock.Clock
}

func NewMemoryDedup(clk clock.Clock) *MemoryDedup {
	return &MemoryDedup{
		entries: make(map[string]time.Time),
		clk:     clk,
	}
}

var _ DedupStore = (*MemoryDedup)(nil)

func (d *MemoryDedup) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiry, ok := d.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}

	// Expired entries for other keys pile up slowly (one per identifier
	// per day), so evict opportunistically while we hold the lock.
	for k, expiry := range d.entries {
		if !now.Before(expiry) {
			delete(d.entries, k)
		}
	}

	d.entries[key] = now.Add(ttl)
	return true, nil
}

// RedisDedup uses SETNX so deduplication holds across instances. On a
// Redis failure it falls back to the in-process store: warnings may then
// double across instances, but they stay deduplicated locally.
type RedisDedup struct {
	redis    *storage.RedisClient
	fallback *MemoryDedup
}

func NewRedisDedup(redis *storage.RedisClient, fallback *MemoryDedup) *RedisDedup {
	return &RedisDedup{
		redis:    redis,
		fallback: fallback,
	}
}

var _ DedupStore = (*RedisDedup)(nil)

func (d *RedisDedup) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	won, err := d.redis.SetNX(ctx, key, "1", ttl)
	if err != nil {
		log.Printf("suspension: dedup store unavailable, using in-process dedup: %v", err)
		return d.fallback.Acquire(ctx, key, ttl)
	}
	return won, nil
}

// warningKey buckets warnings by calendar day (UTC).
func warningKey(identifier string, kind models.IdentifierKind, day time.Time) string {
	return fmt.Sprintf("warn:%s:%s:%s", kind, identifier, day.UTC().Format("2006-01-02"))
}

// suspendKey buckets account-less suspension alerts the same way.
func suspendKey(identifier string, kind models.IdentifierKind, day time.Time) string {
	return fmt.Sprintf("suspend:%s:%s:%s", kind, identifier, day.UTC().Format("2006-01-02"))
}

// untilEndOfDay is the ttl that lets the dedup key lapse at midnight UTC.
func untilEndOfDay(now time.Time) time.Duration {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now.UTC())
}
