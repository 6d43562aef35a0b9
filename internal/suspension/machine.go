// Package suspension moves accounts through the abuse state machine:
// active → warned → suspended. suspended and banned are sticky; only an
// explicit administrative unsuspend returns an account to active.
package suspension

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pulsemetrics/guardrail/internal/abuse"
	"github.com/pulsemetrics/guardrail/internal/alert"
	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/models"
)

// AccountStore is the narrow slice of the account repository the state
// machine is allowed to touch: read one account, flip its status.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	UpdateStatus(ctx context.Context, identifier string, status models.AccountStatus, reason string, suspendedAt *time.Time) error
}

// EventRecorder persists the abuse audit trail. May be nil in tests.
type EventRecorder interface {
	Create(ctx context.Context, event *models.AbuseEvent) error
}

type StateMachine struct {
	accounts   AccountStore
	events     EventRecorder
	dispatcher alert.Dispatcher
	dedup      DedupStore
	clk        clock.Clock
}

func NewStateMachine(accounts AccountStore, events EventRecorder, dispatcher alert.Dispatcher, dedup DedupStore, clk clock.Clock) *StateMachine {
	return &StateMachine{
		accounts:   accounts,
		events:     events,
		dispatcher: dispatcher,
		dedup:      dedup,
		clk:        clk,
	}
}

// Apply routes a heuristics verdict to the right transition. Alerting and
// status changes never propagate an error to the rate-limit decision.
func (m *StateMachine) Apply(ctx context.Context, identifier string, kind models.IdentifierKind, verdict abuse.Verdict) {
	switch {
	case verdict.AutoSuspend:
		m.Suspend(ctx, identifier, kind, verdict.Reasons)
	case verdict.Suspicious:
		m.FlagSuspicious(ctx, identifier, kind, verdict.Reasons, verdict.Severity)
	}
}

// Suspend moves an account to suspended exactly once per overage event.
// Re-applying to an already suspended or banned account is a no-op: no
// state write, no duplicate alert. Identifiers without an account (IPs)
// have no status to make this idempotent, so their overage is gated by a
// per-day dedup key instead: denied traffic keeps incrementing counters,
// and without the gate every further request would re-fire the alert.
func (m *StateMachine) Suspend(ctx context.Context, identifier string, kind models.IdentifierKind, reasons []string) {
	reason := strings.Join(reasons, "; ")

	if kind == models.KindUser {
		account, err := m.accounts.FindByIdentifier(ctx, identifier)
		if err != nil {
			log.Printf("suspension: account lookup failed for %s: %v", identifier, err)
			return
		}
		if account == nil {
			log.Printf("suspension: no account for identifier %s, skipping status change", identifier)
			return
		}
		if account.Status.Blocked() {
			return
		}

		now := m.clk.Now()
		statusReason := fmt.Sprintf("auto-suspended: %s", reason)
		if err := m.accounts.UpdateStatus(ctx, identifier, models.StatusSuspended, statusReason, &now); err != nil {
			log.Printf("suspension: failed to suspend %s: %v", identifier, err)
			return
		}
		log.Printf("suspension: account %s suspended (%s)", identifier, reason)
	} else {
		now := m.clk.Now()
		won, err := m.dedup.Acquire(ctx, suspendKey(identifier, kind, now), untilEndOfDay(now))
		if err != nil {
			log.Printf("suspension: suspension dedup failed for %s: %v", identifier, err)
			return
		}
		if !won {
			return
		}
		log.Printf("suspension: %s %s flagged for overage (%s)", kind, identifier, reason)
	}

	m.record(ctx, identifier, kind, models.EventAutoSuspension, reasons, abuse.SeverityCritical)
	m.dispatcher.Send(alert.Alert{
		Severity:   alert.SeverityCritical,
		Identifier: identifier,
		Kind:       kind,
		Reasons:    reasons,
		Metadata:   map[string]string{"action": "auto_suspend"},
	})
}

// FlagSuspicious marks an active account as warned and raises a warning
// alert, deduplicated to one per identifier per calendar day.
func (m *StateMachine) FlagSuspicious(ctx context.Context, identifier string, kind models.IdentifierKind, reasons []string, severity abuse.Severity) {
	if kind == models.KindUser {
		account, err := m.accounts.FindByIdentifier(ctx, identifier)
		if err != nil {
			log.Printf("suspension: account lookup failed for %s: %v", identifier, err)
		} else if account != nil && account.Status == models.StatusActive {
			reason := fmt.Sprintf("suspicious activity: %s", strings.Join(reasons, "; "))
			if err := m.accounts.UpdateStatus(ctx, identifier, models.StatusWarned, reason, nil); err != nil {
				log.Printf("suspension: failed to mark %s warned: %v", identifier, err)
			}
		}
	}

	if m.warnOncePerDay(ctx, identifier, kind, reasons) {
		m.record(ctx, identifier, kind, models.EventSuspiciousActivity, reasons, severity)
	}
}

// WarnThreshold raises the soft warning when daily usage crosses the
// tier's warning threshold. No status change; same per-day dedup as the
// suspicious-activity warning.
func (m *StateMachine) WarnThreshold(ctx context.Context, identifier string, kind models.IdentifierKind, dayCount int64, threshold int) {
	reasons := []string{fmt.Sprintf("daily usage %d reached warning threshold %d", dayCount, threshold)}
	if m.warnOncePerDay(ctx, identifier, kind, reasons) {
		m.record(ctx, identifier, kind, models.EventWarningThreshold, reasons, abuse.SeverityLow)
	}
}

// Unsuspend is the administrative reset back to active.
func (m *StateMachine) Unsuspend(ctx context.Context, identifier string) error {
	account, err := m.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("no account for identifier %s", identifier)
	}

	if err := m.accounts.UpdateStatus(ctx, identifier, models.StatusActive, "", nil); err != nil {
		return err
	}

	log.Printf("suspension: account %s unsuspended", identifier)
	return nil
}

// warnOncePerDay sends the warning alert if this is the identifier's
// first warning of the calendar day; reports whether it won the slot.
func (m *StateMachine) warnOncePerDay(ctx context.Context, identifier string, kind models.IdentifierKind, reasons []string) bool {
	now := m.clk.Now()
	won, err := m.dedup.Acquire(ctx, warningKey(identifier, kind, now), untilEndOfDay(now))
	if err != nil {
		log.Printf("suspension: warning dedup failed for %s: %v", identifier, err)
		return false
	}
	if !won {
		return false
	}

	m.dispatcher.Send(alert.Alert{
		Severity:   alert.SeverityWarning,
		Identifier: identifier,
		Kind:       kind,
		Reasons:    reasons,
	})
	return true
}

func (m *StateMachine) record(ctx context.Context, identifier string, kind models.IdentifierKind, eventType models.AbuseEventType, reasons []string, severity abuse.Severity) {
	if m.events == nil {
		return
	}

	event := &models.AbuseEvent{
		Identifier: identifier,
		Kind:       kind,
		EventType:  eventType,
		Reasons:    strings.Join(reasons, "; "),
		Severity:   string(severity),
	}
	if err := m.events.Create(ctx, event); err != nil {
		log.Printf("suspension: failed to record abuse event for %s: %v", identifier, err)
	}
}
