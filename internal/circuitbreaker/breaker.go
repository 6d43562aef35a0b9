package circuitbreaker

import (
	"sync"
	"time"

	"github.com/pulsemetrics/guardrail/internal/clock"
)

// CircuitBreaker tracks consecutive failures against a backend and, once
// open, lets callers skip the backend entirely instead of waiting on it.
// Callers ask Allow before each attempt and report the outcome afterwards.
type CircuitBreaker struct {
	mu              sync.Mutex
	clk             clock.Clock
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastStateChange time.Time

	maxFailures     int           // failures before opening
	timeout         time.Duration // how long to stay open
	halfOpenSuccess int           // successes needed in half-open to close
}

type Config struct {
	MaxFailures     int           // Default: 5
	Timeout         time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1
	Clock           clock.Clock
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}

	return &CircuitBreaker{
		clk:             cfg.Clock,
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		timeout:         cfg.Timeout,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		lastStateChange: cfg.Clock.Now(),
	}
}

// Allow reports whether the backend should be attempted right now.
// An open circuit transitions to half-open once the timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.clk.Now().Sub(cb.lastFailureTime) > cb.timeout {
			cb.setState(StateHalfOpen)
			cb.successCount = 0
			return true
		}
		return false
	}

	return true
}

// RecordSuccess reports a successful backend call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure reports a failed backend call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.clk.Now()

	if cb.state == StateHalfOpen {
		// In half-open, any failure opens the circuit
		cb.setState(StateOpen)
		cb.successCount = 0
	} else if cb.failureCount >= cb.maxFailures {
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state != newState {
		cb.state = newState
		cb.lastStateChange = cb.clk.Now()
	}
}

// Returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastStateChange = cb.clk.Now()
}
