package service

import (
	"context"
	"log"

	"github.com/pulsemetrics/guardrail/internal/abuse"
	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/ratelimit"
	"github.com/pulsemetrics/guardrail/internal/suspension"
)

// AccountReader is the engine's read-only view of the account store.
type AccountReader interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
}

// Engine is the decision pipeline the request layer calls once per
// rate-limited action: status gate, counter check, abuse evaluation.
type Engine struct {
	limiter    *ratelimit.RateLimiter
	summarizer *abuse.Summarizer
	heuristics *abuse.Heuristics
	machine    *suspension.StateMachine
	accounts   AccountReader
}

func NewEngine(limiter *ratelimit.RateLimiter, summarizer *abuse.Summarizer, heuristics *abuse.Heuristics, machine *suspension.StateMachine, accounts AccountReader) *Engine {
	return &Engine{
		limiter:    limiter,
		summarizer: summarizer,
		heuristics: heuristics,
		machine:    machine,
		accounts:   accounts,
	}
}

// Check decides whether one occurrence of action is allowed for the
// identifier. The account-status read is the only thing that precedes the
// counter increments: a suspended account must not consume quota at all.
func (e *Engine) Check(ctx context.Context, identifier string, kind models.IdentifierKind, action string) ratelimit.Result {
	if identifier == "" {
		return ratelimit.Deny()
	}

	tier := "free"
	if kind == models.KindUser {
		account, err := e.accounts.FindByIdentifier(ctx, identifier)
		if err != nil {
			// Account store down: keep answering with free-tier limits
			// rather than blocking or admitting everything.
			log.Printf("engine: account lookup failed for %s, using free tier: %v", identifier, err)
		} else if account != nil {
			if account.Status.Blocked() {
				return ratelimit.Deny()
			}
			tier = account.PlanTier
		}
	}

	result := e.limiter.Check(ctx, identifier, kind, action, tier)

	e.evaluateAbuse(ctx, identifier, kind, action, tier)

	return result
}

// evaluateAbuse inspects the freshly updated counters and hands any
// verdict to the suspension machine. It can only add side effects, never
// change the decision already made.
func (e *Engine) evaluateAbuse(ctx context.Context, identifier string, kind models.IdentifierKind, action, tier string) {
	summary, err := e.summarizer.Summarize(ctx, identifier, kind, action)
	if err != nil {
		log.Printf("engine: activity summary failed for %s/%s: %v", kind, identifier, err)
		return
	}

	limits := e.limiter.Table().Lookup(tier)
	verdict := e.heuristics.Evaluate(summary, limits)

	if verdict.Suspicious || verdict.AutoSuspend {
		e.machine.Apply(ctx, identifier, kind, verdict)
		return
	}

	if limits.WarningThreshold > 0 && summary.RequestsLastDay >= int64(limits.WarningThreshold) {
		e.machine.WarnThreshold(ctx, identifier, kind, summary.RequestsLastDay, limits.WarningThreshold)
	}
}

// ActivitySummary builds the admin view of an identifier's current usage.
// Uses Peek only; consumes no quota.
func (e *Engine) ActivitySummary(ctx context.Context, identifier string, kind models.IdentifierKind, action, tier string) (abuse.ActivitySummary, error) {
	summary, err := e.summarizer.Summarize(ctx, identifier, kind, action)
	if err != nil {
		return summary, err
	}

	limits := e.limiter.Table().Lookup(tier)
	verdict := e.heuristics.Evaluate(summary, limits)

	return abuse.Annotate(summary, verdict), nil
}
