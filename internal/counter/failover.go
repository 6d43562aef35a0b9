package counter

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/pulsemetrics/guardrail/internal/circuitbreaker"
	"github.com/pulsemetrics/guardrail/internal/models"
)

// FailoverStore serves from the durable store while it is healthy and
// degrades to the in-process store when it is not. Failover is never
// surfaced to callers: a check call always gets a usable count.
type FailoverStore struct {
	durable  Store
	fallback Store
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration

	fallbackCalls atomic.Int64
}

func NewFailoverStore(durable, fallback Store, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration) *FailoverStore {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &FailoverStore{
		durable:  durable,
		fallback: fallback,
		breaker:  breaker,
		timeout:  timeout,
	}
}

var _ Store = (*FailoverStore)(nil)

func (s *FailoverStore) Increment(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	if s.durable == nil || !s.breaker.Allow() {
		return s.incrementFallback(ctx, identifier, kind, action, window)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, start, err := s.durable.Increment(callCtx, identifier, kind, action, window)
	if err != nil {
		s.breaker.RecordFailure()
		log.Printf("counter: durable store increment failed, using in-process fallback: %v", err)
		return s.incrementFallback(ctx, identifier, kind, action, window)
	}

	s.breaker.RecordSuccess()
	return count, start, nil
}

func (s *FailoverStore) Peek(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	if s.durable == nil || !s.breaker.Allow() {
		return s.fallback.Peek(ctx, identifier, kind, action, window)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, start, err := s.durable.Peek(callCtx, identifier, kind, action, window)
	if err != nil {
		s.breaker.RecordFailure()
		log.Printf("counter: durable store peek failed, using in-process fallback: %v", err)
		return s.fallback.Peek(ctx, identifier, kind, action, window)
	}

	s.breaker.RecordSuccess()
	return count, start, nil
}

// Remove resets both stores so an administrative reset holds regardless of
// which side served recent traffic.
func (s *FailoverStore) Remove(ctx context.Context, identifier string, kind models.IdentifierKind, action string) error {
	if err := s.fallback.Remove(ctx, identifier, kind, action); err != nil {
		return err
	}

	if s.durable == nil || !s.breaker.Allow() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.durable.Remove(callCtx, identifier, kind, action); err != nil {
		s.breaker.RecordFailure()
		log.Printf("counter: durable store reset failed for %s/%s: %v", kind, identifier, err)
		return err
	}

	s.breaker.RecordSuccess()
	return nil
}

func (s *FailoverStore) incrementFallback(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	s.fallbackCalls.Add(1)
	return s.fallback.Increment(ctx, identifier, kind, action, window)
}

// FallbackCalls reports how many increments were served locally. Exposed on
// the admin status endpoint.
func (s *FailoverStore) FallbackCalls() int64 {
	return s.fallbackCalls.Load()
}
