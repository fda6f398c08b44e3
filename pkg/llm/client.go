// Package llm defines the Client interface the model connectors are built
// on. A Client wraps one language-model backend, already bound to a specific
// model and credentials, and performs a single non-streaming chat completion
// per call.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is a single entry in the conversation sent to the model.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Request carries everything a Client needs for one completion. A zero-value
// request is invalid; at minimum Messages must be non-empty.
type Request struct {
	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Backends without a dedicated system slot receive it
	// as a leading "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the backend default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means backend default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between vendors for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a completion call.
type Response struct {
	// Content is the full text of the model's reply.
	Content string

	// Model is the model identifier the backend reports having used.
	Model string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Client is the abstraction over one configured language-model backend.
type Client interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)
}
