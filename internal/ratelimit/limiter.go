package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/counter"
	"github.com/pulsemetrics/guardrail/internal/models"
)

// Result is the decision handed back to the caller. It is transport
// agnostic; the HTTP layer maps it onto X-RateLimit-* headers.
type Result struct {
	Allowed        bool `json:"allowed"`
	Remaining      int  `json:"remaining"`
	ResetInSeconds int  `json:"reset_in_seconds"`
	Limit          int  `json:"limit"`
}

// Deny is the deny-by-default result used when a caller cannot be
// rate-tracked at all (empty identifier).
func Deny() Result {
	return Result{Allowed: false, Remaining: 0, Limit: 0}
}

type granularity struct {
	name   string
	window time.Duration
}

// Granularities evaluated per check: minute for burst control, hour and
// day for the plan budgets. Each owns independent counter records.
var granularities = []granularity{
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
}

// RateLimiter evaluates counter windows against the plan table.
type RateLimiter struct {
	store counter.Store
	table *Table
	clk   clock.Clock
}

func New(store counter.Store, table *Table, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		store: store,
		table: table,
		clk:   clk,
	}
}

func (l *RateLimiter) Table() *Table {
	return l.table
}

// Check records one occurrence of action for the identifier and decides
// whether it is within the tier's budgets.
//
// All granularities are incremented before any is judged: a denied call
// still counts, which is what lets the overage heuristics see usage climb
// past the plan limit. The comparison uses the post-increment count, so
// concurrent callers cannot both slip under a boundary.
func (l *RateLimiter) Check(ctx context.Context, identifier string, kind models.IdentifierKind, action, tier string) Result {
	if identifier == "" {
		return Deny()
	}

	limits := l.table.Lookup(tier)
	now := l.clk.Now()

	type windowCount struct {
		granularity
		limit       int
		count       int64
		windowStart time.Time
	}

	counts := make([]windowCount, 0, len(granularities))
	for _, g := range granularities {
		count, start, err := l.store.Increment(ctx, identifier, kind, action, g.window)
		if err != nil {
			// The failover store absorbs backend outages; an error here
			// means the fallback itself failed. Skip the granularity
			// rather than block traffic.
			log.Printf("ratelimit: %s window increment failed for %s/%s: %v", g.name, kind, identifier, err)
			continue
		}
		counts = append(counts, windowCount{
			granularity: g,
			limit:       l.limitFor(g.name, limits),
			count:       count,
			windowStart: start,
		})
	}

	// First exceeded window denies.
	for _, wc := range counts {
		if Unlimited(wc.limit) {
			continue
		}
		if wc.count > int64(wc.limit) {
			return Result{
				Allowed:        false,
				Remaining:      0,
				ResetInSeconds: resetSeconds(wc.windowStart, wc.window, now),
				Limit:          wc.limit,
			}
		}
	}

	// Allowed: report the most constrained granularity.
	result := Result{Allowed: true, Remaining: -1, Limit: -1}
	for _, wc := range counts {
		if Unlimited(wc.limit) {
			continue
		}
		remaining := wc.limit - int(wc.count)
		if remaining < 0 {
			remaining = 0
		}
		if result.Remaining == -1 || remaining < result.Remaining {
			result.Remaining = remaining
			result.Limit = wc.limit
			result.ResetInSeconds = resetSeconds(wc.windowStart, wc.window, now)
		}
	}

	return result
}

func (l *RateLimiter) limitFor(name string, limits Limits) int {
	switch name {
	case "minute":
		return limits.PerMinute
	case "hour":
		return limits.PerHour
	case "day":
		return limits.PerDay
	default:
		return -1
	}
}

func resetSeconds(start time.Time, window time.Duration, now time.Time) int {
	seconds := int(start.Add(window).Sub(now).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return seconds
}
