// Package resilience protects the scoring pipeline from misbehaving external
// dependencies: the forced-alignment subprocess and the feedback LLM APIs.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops forwarding calls to a dependency that keeps failing. [FallbackGroup]
// chains several providers of the same kind behind per-provider breakers so
// an unhealthy primary is bypassed in favour of the next configured backend.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the reset
	// timeout has elapsed.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to decide
	// whether the dependency has recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output (e.g. "aligner", "openai").
	Name string

	// MaxFailures is how many consecutive failures the closed state
	// tolerates before opening. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the open state lasts before probing resumes.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the probe allowance in the half-open state and the
	// number of successful probes required to close again. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker is a classic three-state breaker. The zero value is not
// usable; construct with [NewCircuitBreaker].
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failureStreak int
	openedAt      time.Time
	probesSent    int
	probesPassed  int
}

// NewCircuitBreaker builds a breaker from cfg, substituting defaults for
// zero-value fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn unless the breaker is refusing calls, and feeds the outcome
// back into the breaker's state.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probing, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.settle(err, probing)
	return err
}

// admit decides whether a call may proceed, performing the open → half-open
// transition when the reset timeout has elapsed. It reports whether the
// admitted call counts as a half-open probe.
func (cb *CircuitBreaker) admit() (probing bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesSent = 0
		cb.probesPassed = 0
		slog.Info("circuit breaker probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probesSent >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probesSent++
		return true, nil
	}
	return false, nil
}

// settle records the call outcome.
func (cb *CircuitBreaker) settle(callErr error, probing bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if callErr != nil {
		if probing {
			// One failed probe is enough evidence the dependency is
			// still down.
			cb.trip()
			slog.Warn("circuit breaker re-opened", "name", cb.name)
			return
		}
		cb.failureStreak++
		if cb.failureStreak >= cb.maxFailures {
			cb.trip()
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.failureStreak)
		}
		return
	}

	if probing {
		cb.probesPassed++
		if cb.probesPassed >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failureStreak = 0
			cb.probesSent = 0
			cb.probesPassed = 0
			slog.Info("circuit breaker closed", "name", cb.name)
		}
		return
	}
	cb.failureStreak = 0
}

// trip moves to the open state. Must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.failureStreak = cb.maxFailures
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reads as half-open; the stored transition happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureStreak = 0
	cb.probesSent = 0
	cb.probesPassed = 0
	slog.Info("circuit breaker reset", "name", cb.name)
}
