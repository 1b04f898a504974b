// Package resilience keeps the analysis pipeline responsive when a
// transcription or language-model backend misbehaves.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) kept
// per backend. [FallbackGroup] walks an ordered list of backends of the same
// capability, skipping the ones whose breaker is open, and reports every
// attempt through an optional hook so callers can record provider metrics.
// [LLMFallback] and [STTFallback] adapt a group to the provider interfaces.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. Enough
	// successful probes close the breaker; a single failed probe reopens it.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults noted on each field.
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change notifications.
	Name string

	// MaxFailures is the run of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget in the half-open state and also the
	// number of successful probes needed to close. Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition with the
	// breaker's name. It runs with the breaker's lock held and must not
	// call back into the breaker.
	OnStateChange func(name string, from, to State)

	// Clock replaces time.Now. Tests use it to step past the reset timeout.
	Clock func() time.Time
}

// CircuitBreaker guards calls to one backend.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu           sync.Mutex
	state        State
	failures     int // consecutive failures while closed
	openedAt     time.Time
	probes       int // probes admitted in the current half-open window
	probeSuccess int
}

// NewCircuitBreaker returns a closed breaker.
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
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Name returns the label the breaker was created with.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// Execute calls fn unless the breaker rejects the call, in which case it
// returns [ErrCircuitOpen] without calling fn. fn's error is returned as is.
//
// A call that fails after ctx is done is neither a failure nor a success.
// An error that only wraps [context.DeadlineExceeded] while ctx is still
// live is the backend's own timeout and counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, callerAborted(ctx, err), err)
	return err
}

// callerAborted reports whether a failed call ended because ctx did.
func callerAborted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Clock().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.probeSuccess = 0, 0
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe, aborted bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A probe admitted before a concurrent Reset or reopen no longer
	// belongs to the current window.
	if probe && cb.state != StateHalfOpen {
		return
	}

	switch {
	case aborted:
		if probe {
			cb.probes--
		}
	case err != nil && probe:
		cb.open()
	case err != nil:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.open()
		}
	case probe:
		cb.probeSuccess++
		if cb.probeSuccess >= cb.cfg.HalfOpenMax {
			cb.failures = 0
			cb.transition(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

// open trips the breaker. Must be called with cb.mu held.
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.cfg.Clock()
	cb.transition(StateOpen)
}

// transition moves to next, logging and notifying. Must be called with
// cb.mu held.
func (cb *CircuitBreaker) transition(next State) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next

	level := slog.LevelInfo
	if next == StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", cb.cfg.Name, "from", prev.String(), "to", next.String(), "consecutive_failures", cb.failures)

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, prev, next)
	}
}

// State returns the breaker's state as a caller would see it now: an open
// breaker whose reset timeout has elapsed reports [StateHalfOpen] even
// though the transition happens on the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Clock().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures, cb.probes, cb.probeSuccess = 0, 0, 0
	cb.transition(StateClosed)
}
