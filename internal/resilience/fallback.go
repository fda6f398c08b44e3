package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned by [Attempt] when every backend in a [Failover]
// fails or sits behind an open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

// backend pairs one entry of a [Failover] with its dedicated breaker.
type backend[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Failover is an ordered set of interchangeable backends, each guarded by
// its own [CircuitBreaker]. Entries are tried in registration order; an
// entry whose breaker is open is skipped without a call.
//
// The entry set is fixed after construction; [Attempt] may then be used
// concurrently.
type Failover[T any] struct {
	cfg      CircuitBreakerConfig
	backends []backend[T]
}

// NewFailover creates an empty group. cfg supplies the breaker knobs shared
// by all entries; each entry's breaker is named after the entry.
func NewFailover[T any](cfg CircuitBreakerConfig) *Failover[T] {
	return &Failover[T]{cfg: cfg}
}

// Add appends a backend. The first entry added is the primary.
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg
	cfg.Name = name
	f.backends = append(f.backends, backend[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cfg),
	})
}

// Names returns the backend names in registration order.
func (f *Failover[T]) Names() []string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.name
	}
	return names
}

// Attempt calls fn against each backend in order until one succeeds,
// returning that backend's result. Cancellation of ctx stops the walk.
// When every backend fails the last error is wrapped in [ErrAllFailed].
//
// A package-level function because Go methods cannot introduce the result
// type parameter.
func Attempt[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	if len(f.backends) == 0 {
		return zero, fmt.Errorf("%w: no backends registered", ErrAllFailed)
	}
	for i := range f.backends {
		b := &f.backends[i]

		var result R
		err := b.breaker.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			result, callErr = fn(ctx, b.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.DebugContext(ctx, "skipping backend with open breaker", "backend", b.name)
		} else {
			slog.WarnContext(ctx, "backend failed, trying next", "backend", b.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
