// Package abuse classifies activity patterns on top of the raw window
// counters: rapid-fire bursts, hourly spikes, and sustained daily overage.
package abuse

import (
	"context"
	"time"

	"github.com/pulsemetrics/guardrail/internal/counter"
	"github.com/pulsemetrics/guardrail/internal/models"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ActivitySummary is derived on demand from the counter windows; it is
// never persisted.
type ActivitySummary struct {
	Identifier         string                `json:"identifier"`
	Kind               models.IdentifierKind `json:"kind"`
	RequestsLastMinute int64                 `json:"requests_last_minute"`
	RequestsLastHour   int64                 `json:"requests_last_hour"`
	RequestsLastDay    int64                 `json:"requests_last_day"`
	IsSuspicious       bool                  `json:"is_suspicious"`
	SuspiciousReasons  []string              `json:"suspicious_reasons,omitempty"`
	Severity           Severity              `json:"severity"`
}

// Summarizer reads activity snapshots without consuming quota.
type Summarizer struct {
	store counter.Store
}

func NewSummarizer(store counter.Store) *Summarizer {
	return &Summarizer{store: store}
}

// Summarize peeks the minute, hour and day windows for one action.
func (s *Summarizer) Summarize(ctx context.Context, identifier string, kind models.IdentifierKind, action string) (ActivitySummary, error) {
	summary := ActivitySummary{
		Identifier: identifier,
		Kind:       kind,
		Severity:   SeverityLow,
	}

	minute, _, err := s.store.Peek(ctx, identifier, kind, action, time.Minute)
	if err != nil {
		return summary, err
	}
	hour, _, err := s.store.Peek(ctx, identifier, kind, action, time.Hour)
	if err != nil {
		return summary, err
	}
	day, _, err := s.store.Peek(ctx, identifier, kind, action, 24*time.Hour)
	if err != nil {
		return summary, err
	}

	summary.RequestsLastMinute = minute
	summary.RequestsLastHour = hour
	summary.RequestsLastDay = day

	return summary, nil
}
