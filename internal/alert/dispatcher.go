// Package alert delivers human-readable notifications for suspicious
// activity and suspensions. Delivery is fire-and-forget: a failed or
// dropped alert never affects the rate-limit decision that produced it.
package alert

import (
	"context"
	"time"

	"github.com/pulsemetrics/guardrail/internal/models"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	Severity   Severity              `json:"severity"`
	Identifier string                `json:"identifier"`
	Kind       models.IdentifierKind `json:"kind"`
	Reasons    []string              `json:"reasons"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// Dispatcher accepts alerts for delivery. Send must not block the caller.
type Dispatcher interface {
	Send(alert Alert)
}

// Sink is one delivery channel (chat webhook, log, ...).
type Sink interface {
	Deliver(ctx context.Context, alert Alert) error
}
