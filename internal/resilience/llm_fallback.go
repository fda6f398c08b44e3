package resilience

import (
	"context"

	"github.com/loomworks/loom/pkg/llm"
)

// LLMFallback implements [llm.Client] over an ordered chain of model
// backends. When the primary fails or its breaker is open, the next healthy
// entry serves the completion.
type LLMFallback struct {
	group *Failover[llm.Client]
}

var _ llm.Client = (*LLMFallback)(nil)

// NewLLMFallback creates a chain with primary as the preferred backend. cfg
// supplies the breaker knobs applied per entry.
func NewLLMFallback(primary llm.Client, primaryName string, cfg CircuitBreakerConfig) *LLMFallback {
	g := NewFailover[llm.Client](cfg)
	g.Add(primaryName, primary)
	return &LLMFallback{group: g}
}

// AddFallback appends a model client tried after the entries already
// registered.
func (f *LLMFallback) AddFallback(name string, client llm.Client) {
	f.group.Add(name, client)
}

// Backends returns the chain's backend names in order.
func (f *LLMFallback) Backends() []string {
	return f.group.Names()
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return Attempt(ctx, f.group, func(ctx context.Context, c llm.Client) (*llm.Response, error) {
		return c.Complete(ctx, req)
	})
}
