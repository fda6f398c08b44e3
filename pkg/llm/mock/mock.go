// Package mock provides a test double for the llm.Client interface.
//
// Use Client in unit tests to feed controlled completions to model
// connectors without a live backend. All fields are safe to set before
// calling any method; mutating them during a concurrent call is the
// caller's responsibility.
//
// Example:
//
//	c := &mock.Client{Response: &llm.Response{Content: "Hello!"}}
//	resp, err := c.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/loomworks/loom/pkg/llm"
)

// Call records a single invocation of Complete.
type Call struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the Request passed to Complete.
	Req llm.Request
}

// Client is a mock implementation of llm.Client.
// A zero value returns an empty Response and nil error. Set Err to inject
// failures.
type Client struct {
	mu sync.Mutex

	// Response is returned by Complete when Err is nil. When nil, an empty
	// Response is returned instead.
	Response *llm.Response

	// Err, if non-nil, is returned by Complete.
	Err error

	// Calls records every Complete invocation in order.
	Calls []Call
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, Call{Ctx: ctx, Req: req})
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.Response != nil {
		resp := *c.Response
		return &resp, nil
	}
	return &llm.Response{}, nil
}

// CallCount returns the number of recorded Complete invocations.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}
