package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail() error    { return errTest }
func succeed() error { return nil }

// tripped returns a breaker opened by maxFailures consecutive failures.
func tripped(t *testing.T, clock *fakeClock, maxFailures, halfOpenMax int) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "whisper",
		MaxFailures:  maxFailures,
		ResetTimeout: 10 * time.Second,
		HalfOpenMax:  halfOpenMax,
		Clock:        clock.Now,
	})
	for range maxFailures {
		_ = cb.Execute(context.Background(), fail)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state after %d failures = %v, want open", maxFailures, got)
	}
	return cb
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai"})
	if cb.cfg.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.cfg.HalfOpenMax != 3 {
		t.Errorf("HalfOpenMax = %d, want 3", cb.cfg.HalfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", cb.Name())
	}
}

func TestCircuitBreaker_ClosedAllowsCalls(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 3})
	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestCircuitBreaker_OpenRejectsWithoutCalling(t *testing.T) {
	t.Parallel()
	cb := tripped(t, newFakeClock(), 3, 1)

	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("fn called while open")
	}
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 3})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), succeed)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed: the success should restart the count", got)
	}
	_ = cb.Execute(context.Background(), fail)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after three consecutive failures", got)
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := tripped(t, clock, 2, 2)

	clock.Advance(9 * time.Second)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state before timeout = %v, want open", got)
	}
	clock.Advance(time.Second)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state at timeout = %v, want half-open", got)
	}
}

func TestCircuitBreaker_ProbesClose(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := tripped(t, clock, 2, 2)
	clock.Advance(10 * time.Second)

	for i := range 2 {
		if err := cb.Execute(context.Background(), succeed); err != nil {
			t.Fatalf("probe %d: unexpected error: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", got)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := tripped(t, clock, 2, 3)
	clock.Advance(10 * time.Second)

	if err := cb.Execute(context.Background(), fail); !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want the probe's error", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after a failed probe", got)
	}

	// The reset timeout restarts from the failed probe.
	clock.Advance(5 * time.Second)
	if err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_ProbeBudget(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := tripped(t, clock, 1, 2)
	clock.Advance(10 * time.Second)

	// Hold two probes in flight; a third caller must be turned away.
	release := make(chan struct{})
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)
	for range 2 {
		wg.Go(func() {
			_ = cb.Execute(context.Background(), func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		})
	}
	<-started
	<-started

	if err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("third probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	wg.Wait()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after both probes succeeded", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := tripped(t, newFakeClock(), 2, 1)

	cb.Reset()
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after reset", got)
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()

	type change struct {
		name     string
		from, to State
	}
	var got []change
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "deepgram",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		Clock:        clock.Now,
		OnStateChange: func(name string, from, to State) {
			got = append(got, change{name, from, to})
		},
	})

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Second)
	_ = cb.Execute(context.Background(), succeed)
	cb.Reset() // already closed: no notification

	want := []change{
		{"deepgram", StateClosed, StateOpen},
		{"deepgram", StateOpen, StateHalfOpen},
		{"deepgram", StateHalfOpen, StateClosed},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d transitions %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

// canceled returns a context that is already done with cause.
func canceled(cause error) context.Context {
	if errors.Is(cause, context.DeadlineExceeded) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
		cancel()
		return ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestCircuitBreaker_CallerAbortsDoNotCount(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 2})

	aborts := []error{
		context.Canceled,
		context.DeadlineExceeded,
		fmt.Errorf("openai: complete: %w", context.DeadlineExceeded),
	}
	for _, abort := range aborts {
		if err := cb.Execute(canceled(abort), func() error { return abort }); !errors.Is(err, abort) {
			t.Fatalf("err = %v, want %v passed through", err, abort)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after caller aborts", got)
	}

	_ = cb.Execute(context.Background(), fail)
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after one failure", got)
	}
}

func TestCircuitBreaker_BackendTimeoutCounts(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 2})

	timeout := fmt.Errorf("openai: complete: %w", context.DeadlineExceeded)
	for range 2 {
		if err := cb.Execute(context.Background(), func() error { return timeout }); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want the backend timeout", err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after two backend timeouts", got)
	}
}

func TestCircuitBreaker_AbortedProbeFreesBudget(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := tripped(t, clock, 1, 1)
	clock.Advance(10 * time.Second)

	ctx := canceled(context.Canceled)
	if err := cb.Execute(ctx, func() error { return ctx.Err() }); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("second probe err = %v, want nil", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}
