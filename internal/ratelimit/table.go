package ratelimit

import (
	"fmt"
	"log"
	"sync"

	"github.com/pulsemetrics/guardrail/internal/config"
)

// Limits holds the window budgets for one plan tier. -1 means unlimited
// for that granularity. Config validation rejects an unset (zero) limit
// before it reaches this table; a zero arriving programmatically is still
// treated as unbounded rather than denying all traffic.
type Limits struct {
	PerMinute        int
	PerHour          int
	PerDay           int
	WarningThreshold int
}

// Unlimited reports whether a configured limit places no bound.
func Unlimited(limit int) bool {
	return limit <= 0
}

// Table maps plan tiers to their limits. Unknown tiers resolve to the
// free tier and are logged once per distinct value to keep the log quiet.
type Table struct {
	tiers         map[string]Limits
	fallback      Limits
	unknownLogged sync.Map
}

const fallbackTier = "free"

func NewTable(tiers []config.TierLimits) (*Table, error) {
	t := &Table{tiers: make(map[string]Limits, len(tiers))}

	for _, tier := range tiers {
		t.tiers[tier.Name] = Limits{
			PerMinute:        tier.PerMinute,
			PerHour:          tier.PerHour,
			PerDay:           tier.PerDay,
			WarningThreshold: tier.WarningThreshold,
		}
	}

	fallback, ok := t.tiers[fallbackTier]
	if !ok {
		return nil, fmt.Errorf("plan table has no %q tier to fall back to", fallbackTier)
	}
	t.fallback = fallback

	return t, nil
}

// Lookup resolves a tier name, falling back to the free tier for values
// the table has never heard of.
func (t *Table) Lookup(tier string) Limits {
	if limits, ok := t.tiers[tier]; ok {
		return limits
	}

	if _, loaded := t.unknownLogged.LoadOrStore(tier, struct{}{}); !loaded {
		log.Printf("ratelimit: unknown plan tier %q, using %q limits", tier, fallbackTier)
	}

	return t.fallback
}

// Tiers returns the configured tier names and limits.
func (t *Table) Tiers() map[string]Limits {
	out := make(map[string]Limits, len(t.tiers))
	for name, limits := range t.tiers {
		out[name] = limits
	}
	return out
}
