package abuse

import (
	"github.com/pulsemetrics/guardrail/internal/config"
	"github.com/pulsemetrics/guardrail/internal/ratelimit"
)

const (
	ReasonBurst        = "burst"
	ReasonHourlySpike  = "hourly spike"
	ReasonDailyOverage = "daily overage"
)

// Verdict is the outcome of one heuristics pass. Only the daily overage
// rule sets AutoSuspend; burst and spike false-positive too often on
// legitimate power users to justify an automatic account action.
type Verdict struct {
	Suspicious  bool
	Reasons     []string
	AutoSuspend bool
	Severity    Severity
}

// Heuristics evaluates the configured thresholds against a summary.
type Heuristics struct {
	rapidFireThreshold int64
	spikeMultiplier    float64
	overageMultiplier  float64
}

func NewHeuristics(cfg config.AbuseConfig) *Heuristics {
	return &Heuristics{
		rapidFireThreshold: int64(cfg.RapidFireThreshold),
		spikeMultiplier:    cfg.SpikeMultiplier,
		overageMultiplier:  cfg.OverageMultiplier,
	}
}

// Evaluate runs every rule independently; any subset may fire. Unlimited
// granularities never fire their rule.
func (h *Heuristics) Evaluate(summary ActivitySummary, limits ratelimit.Limits) Verdict {
	verdict := Verdict{Severity: SeverityLow}

	if summary.RequestsLastMinute >= h.rapidFireThreshold {
		verdict.Suspicious = true
		verdict.Reasons = append(verdict.Reasons, ReasonBurst)
		verdict.Severity = SeverityMedium
	}

	if !ratelimit.Unlimited(limits.PerHour) {
		spikeAt := int64(float64(limits.PerHour) * h.spikeMultiplier)
		if summary.RequestsLastHour >= spikeAt {
			verdict.Suspicious = true
			verdict.Reasons = append(verdict.Reasons, ReasonHourlySpike)
			verdict.Severity = SeverityHigh
		}
	}

	if !ratelimit.Unlimited(limits.PerDay) {
		overageAt := int64(float64(limits.PerDay) * h.overageMultiplier)
		if summary.RequestsLastDay >= overageAt {
			verdict.Suspicious = true
			verdict.Reasons = append(verdict.Reasons, ReasonDailyOverage)
			verdict.AutoSuspend = true
			verdict.Severity = SeverityCritical
		}
	}

	return verdict
}

// Annotate copies a verdict's findings onto the summary it was derived
// from, for the admin activity view.
func Annotate(summary ActivitySummary, verdict Verdict) ActivitySummary {
	summary.IsSuspicious = verdict.Suspicious
	summary.SuspiciousReasons = verdict.Reasons
	summary.Severity = verdict.Severity
	return summary
}
