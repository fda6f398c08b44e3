// Package model provides the language-model connector family: ~20 vendor
// connectors that all share one adapter shape. Each connector declares its
// credential and tuning fields, builds an [llm.Client] for its backend, and
// exposes a single-prompt completion as the uniform invoke surface.
//
// The connector set is assembled in catalog.go; [Register] installs all of
// them into a registry at startup.
package model

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/llm"
	"github.com/loomworks/loom/pkg/schema"
)

// Adapter is a model connector instance bound to one backend client and
// generation settings. It implements [connector.Adapter] and
// [connector.Narrower].
type Adapter struct {
	id           string
	client       llm.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// NewAdapter builds an adapter around an already-configured client. The
// catalog factories use this after constructing the vendor-specific client;
// tests use it directly with a mock client.
func NewAdapter(id string, client llm.Client, in connector.Inputs) (*Adapter, error) {
	if id == "" {
		return nil, fmt.Errorf("model: id must not be empty")
	}
	if client == nil {
		return nil, fmt.Errorf("model: client for %q must not be nil", id)
	}
	return &Adapter{
		id:           id,
		client:       client,
		model:        in.String("model"),
		systemPrompt: in.String("system_prompt"),
		temperature:  in.Float("temperature", 0),
		maxTokens:    in.Int("max_tokens", 0),
	}, nil
}

// Invoke implements [connector.Adapter]. The invocation input is the single
// "input" field carrying the user prompt; one completion call is made and
// the reply is wrapped into the envelope.
func (a *Adapter) Invoke(ctx context.Context, in connector.Inputs) *schema.Data {
	prompt := in.String("input")
	if prompt == "" {
		return schema.FromError(fmt.Errorf("%v: %q", connector.ErrMissingField, "input"))
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		SystemPrompt: a.systemPrompt,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		return schema.FromError(fmt.Errorf("%s completion failed. %v", a.id, err))
	}

	model := resp.Model
	if model == "" {
		model = a.model
	}
	return schema.FromMap(map[string]any{
		"model":   model,
		"content": resp.Content,
		"usage": map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	})
}

// Tool implements [connector.Narrower]: a narrowed surface accepting only
// the prompt. Credentials, model choice, and tuning stay bound in the
// adapter.
func (a *Adapter) Tool() connector.Tool {
	return connector.Tool{
		Name:        "ask_" + a.id,
		Description: fmt.Sprintf("Send a prompt to the configured %s model and return its reply.", a.id),
		Parameters: connector.ParametersSchema([]schema.Field{
			{
				Name:     "input",
				Kind:     schema.KindString,
				Required: true,
				Info:     "The prompt to send to the model.",
			},
		}),
		Handler: func(ctx context.Context, args connector.Inputs) *schema.Data {
			return a.Invoke(ctx, connector.Inputs{"input": args.String("input")})
		},
	}
}
