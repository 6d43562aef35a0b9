package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsemetrics/guardrail/internal/clock"
)

func newTestBreaker() (*CircuitBreaker, *clock.Manual) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	cb := New(Config{MaxFailures: 3, Timeout: 30 * time.Second, HalfOpenSuccess: 2, Clock: clk})
	return cb, clk
}

func TestBreakerStartsClosed(t *testing.T) {
	cb, _ := newTestBreaker()

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker()

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	cb, clk := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	assert.False(t, cb.Allow())

	clk.Advance(31 * time.Second)

	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb, clk := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clk.Advance(31 * time.Second)
	assert.True(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb, clk := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clk.Advance(31 * time.Second)
	assert.True(t, cb.Allow())

	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerManualReset(t *testing.T) {
	cb, _ := newTestBreaker()

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
