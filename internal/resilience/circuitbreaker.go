// Package resilience guards outbound vendor calls.
//
// [CircuitBreaker] is a three-state breaker (closed → open → half-open) that
// stops hammering a backend that keeps failing. [Failover] composes several
// backends of one type, each behind its own breaker, so an unhealthy primary
// is bypassed in favour of the next entry.
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

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to decide
	// whether the backend has recovered.
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
// defaults documented per field.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages, typically the vendor or
	// backend it guards.
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default 5.
	MaxFailures int

	// Cooldown is how long an open breaker rejects calls before probing the
	// backend again. Default 30s.
	Cooldown time.Duration

	// ProbeQuota is how many successful probe calls close a half-open
	// breaker; a single failed probe re-opens it. Default 3.
	ProbeQuota int
}

func (cfg CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 3
	}
	return cfg
}

// CircuitBreaker tracks consecutive failures against one backend and fails
// fast while the backend is considered down.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	probeWins int
}

// NewCircuitBreaker creates a closed breaker with cfg's knobs (defaults
// applied).
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), state: StateClosed}
}

// Execute runs fn unless the breaker forbids it.
//
// An open breaker returns [ErrCircuitOpen] without calling fn; after the
// cooldown it moves to half-open and admits up to ProbeQuota probe calls.
// A context that is already done short-circuits with ctx.Err(), and a
// failure that coincides with a cancelled context is not held against the
// backend — the caller gave up, the vendor did not misbehave.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeWins = 0
		slog.InfoContext(ctx, "circuit breaker probing backend", "name", cb.cfg.Name)
	case StateHalfOpen:
		if cb.probes >= cb.cfg.ProbeQuota {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.onSuccess(ctx, probing)
	case ctx.Err() != nil:
		// Cancellation, not a backend verdict: leave the counters alone.
	default:
		cb.onFailure(ctx, probing)
	}
	return err
}

// onSuccess updates counters after a successful call. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(ctx context.Context, probing bool) {
	if !probing {
		cb.failures = 0
		return
	}
	cb.probeWins++
	if cb.probeWins >= cb.cfg.ProbeQuota {
		cb.state = StateClosed
		cb.failures = 0
		slog.InfoContext(ctx, "circuit breaker closed", "name", cb.cfg.Name)
	}
}

// onFailure updates counters after a failed call. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(ctx context.Context, probing bool) {
	cb.openedAt = time.Now()
	if probing {
		// One bad probe is enough: the backend is still down.
		cb.state = StateOpen
		cb.failures = cb.cfg.MaxFailures
		slog.WarnContext(ctx, "circuit breaker re-opened", "name", cb.cfg.Name)
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.MaxFailures {
		cb.state = StateOpen
		slog.WarnContext(ctx, "circuit breaker opened",
			"name", cb.cfg.Name, "consecutive_failures", cb.failures)
	}
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [StateHalfOpen]; the actual transition happens on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.Cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeWins = 0
}
