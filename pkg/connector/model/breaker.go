package model

import (
	"context"
	"sync"

	"github.com/loomworks/loom/internal/resilience"
	"github.com/loomworks/loom/pkg/llm"
)

// breakers holds one circuit breaker per connector ID. Adapters are
// per-invocation objects, so breaker state must live at package level for
// repeated failures against the same vendor to start failing fast.
var breakers sync.Map // connector ID → *resilience.CircuitBreaker

func breakerFor(id string) *resilience.CircuitBreaker {
	if cb, ok := breakers.Load(id); ok {
		return cb.(*resilience.CircuitBreaker)
	}
	cb, _ := breakers.LoadOrStore(id, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: "model/" + id,
	}))
	return cb.(*resilience.CircuitBreaker)
}

// protectedClient guards a vendor client with the vendor's shared breaker.
// When the breaker is open, Complete fails immediately with
// [resilience.ErrCircuitOpen] instead of waiting on a timeout against a
// vendor that is known to be down.
type protectedClient struct {
	id    string
	inner llm.Client
}

// WithFallbacks returns a copy of a whose completions fail over to the
// given adapters' backends when a's own backend fails or its breaker is
// open, in the order given. Each fallback completes with its own bound
// model and credentials; the prompt-side settings (system prompt, tuning)
// stay the primary's. With no fallbacks, a is returned unchanged.
func (a *Adapter) WithFallbacks(fallbacks ...*Adapter) *Adapter {
	if len(fallbacks) == 0 {
		return a
	}
	chain := resilience.NewLLMFallback(a.client, a.id, resilience.CircuitBreakerConfig{})
	for _, f := range fallbacks {
		chain.AddFallback(f.id, f.client)
	}
	clone := *a
	clone.client = chain
	return &clone
}

func (p *protectedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var resp *llm.Response
	err := breakerFor(p.id).Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.inner.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
