package model

import (
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/llm"
	"github.com/loomworks/loom/pkg/llm/anyllm"
	"github.com/loomworks/loom/pkg/llm/openaicompat"
	"github.com/loomworks/loom/pkg/schema"
)

// Registration pairs a connector spec with its factory, ready for
// [connector.Registry.Register].
type Registration struct {
	Spec    connector.Spec
	Factory connector.Factory
}

// vendor describes one catalog entry. Connectors come in two families:
// backends natively supported by any-llm-go, and vendors reached through
// their OpenAI-compatible endpoint.
type vendor struct {
	id          string
	displayName string
	docs        string

	// anyLLMBackend selects the any-llm-go backend. Empty means the vendor
	// is served via the OpenAI-compatible client instead.
	anyLLMBackend string

	// defaultBaseURL is the compat endpoint when anyLLMBackend is empty.
	// The base_url field always overrides it.
	defaultBaseURL string

	// local marks self-hosted backends that need no API key.
	local bool

	// endpointRequired forces base_url to be a required field (Azure).
	endpointRequired bool
}

// catalog is the full connector set, mirroring the language-model palette of
// the workflow builder. Ordered roughly alphabetically for stable docs; the
// registry sorts listings anyway.
var catalog = []vendor{
	{id: "aiml", displayName: "AI/ML API", defaultBaseURL: "https://api.aimlapi.com/v1"},
	{id: "anthropic", displayName: "Anthropic", anyLLMBackend: "anthropic", docs: "https://docs.anthropic.com"},
	{id: "azure-openai", displayName: "Azure OpenAI", endpointRequired: true},
	{id: "cohere", displayName: "Cohere", defaultBaseURL: "https://api.cohere.ai/compatibility/v1", docs: "https://docs.cohere.com/docs/compatibility-api"},
	{id: "deepseek", displayName: "DeepSeek", anyLLMBackend: "deepseek"},
	{id: "gemini", displayName: "Google Gemini", anyLLMBackend: "gemini"},
	{id: "groq", displayName: "Groq", anyLLMBackend: "groq"},
	{id: "huggingface", displayName: "Hugging Face", defaultBaseURL: "https://router.huggingface.co/v1"},
	{id: "llamacpp", displayName: "llama.cpp", anyLLMBackend: "llamacpp", local: true},
	{id: "llamafile", displayName: "Llamafile", anyLLMBackend: "llamafile", local: true},
	{id: "lmstudio", displayName: "LM Studio", defaultBaseURL: "http://localhost:1234/v1", local: true},
	{id: "maritalk", displayName: "MariTalk", defaultBaseURL: "https://chat.maritaca.ai/api"},
	{id: "mistral", displayName: "Mistral AI", anyLLMBackend: "mistral"},
	{id: "novita", displayName: "Novita AI", defaultBaseURL: "https://api.novita.ai/v3/openai"},
	{id: "nvidia", displayName: "NVIDIA", defaultBaseURL: "https://integrate.api.nvidia.com/v1"},
	{id: "ollama", displayName: "Ollama", anyLLMBackend: "ollama", local: true},
	{id: "openai", displayName: "OpenAI", anyLLMBackend: "openai", docs: "https://platform.openai.com/docs"},
	{id: "openrouter", displayName: "OpenRouter", defaultBaseURL: "https://openrouter.ai/api/v1"},
	{id: "perplexity", displayName: "Perplexity", defaultBaseURL: "https://api.perplexity.ai"},
	{id: "qianfan", displayName: "Baidu Qianfan", defaultBaseURL: "https://qianfan.baidubce.com/v2"},
	{id: "sambanova", displayName: "SambaNova", defaultBaseURL: "https://api.sambanova.ai/v1"},
	{id: "swama", displayName: "Swama", defaultBaseURL: "http://localhost:28100/v1", local: true},
	{id: "xai", displayName: "xAI", defaultBaseURL: "https://api.x.ai/v1"},
}

// fields builds the declared field list for a vendor. All model connectors
// share the same surface; only the required flags vary.
func (v vendor) fields() []schema.Field {
	return []schema.Field{
		{
			Name:        "api_key",
			DisplayName: v.displayName + " API Key",
			Kind:        schema.KindSecret,
			Required:    !v.local,
		},
		{
			Name:        "model",
			DisplayName: "Model Name",
			Kind:        schema.KindString,
			Required:    true,
			Info:        "e.g., gpt-4o, claude-sonnet-4-5, llama3.3",
		},
		{
			Name:        "base_url",
			DisplayName: "API Base URL",
			Kind:        schema.KindString,
			Required:    v.endpointRequired,
			Info:        "Leave empty to use the vendor default.",
		},
		{
			Name:        "temperature",
			DisplayName: "Temperature",
			Kind:        schema.KindString,
			Info:        "Sampling temperature in [0.0, 2.0]. Empty means vendor default.",
		},
		{
			Name:        "max_tokens",
			DisplayName: "Max Output Tokens",
			Kind:        schema.KindString,
			Info:        "Cap on generated tokens. Empty means vendor default.",
		},
		{
			Name:        "system_prompt",
			DisplayName: "System Message",
			Kind:        schema.KindString,
		},
	}
}

func (v vendor) spec() connector.Spec {
	return connector.Spec{
		ID:            v.id,
		DisplayName:   v.displayName,
		Documentation: v.docs,
		Fields:        v.fields(),
	}
}

// factory returns the connector.Factory for this vendor. The factory
// validates the declared fields, builds the backend client, guards it with
// the vendor's shared circuit breaker, and wraps it in the shared [Adapter].
func (v vendor) factory() connector.Factory {
	return func(in connector.Inputs) (connector.Adapter, error) {
		if err := in.Validate(v.fields()); err != nil {
			return nil, fmt.Errorf("model/%s: %w", v.id, err)
		}

		client, err := v.buildClient(in)
		if err != nil {
			return nil, fmt.Errorf("model/%s: %w", v.id, err)
		}
		return NewAdapter(v.id, &protectedClient{id: v.id, inner: client}, in)
	}
}

// buildClient constructs the vendor's llm.Client from the resolved inputs.
func (v vendor) buildClient(in connector.Inputs) (*clientBox, error) {
	apiKey := in.String("api_key")
	model := in.String("model")
	baseURL := in.String("base_url")

	if v.anyLLMBackend != "" {
		var opts []anyllmlib.Option
		if apiKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(apiKey))
		}
		if baseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(baseURL))
		}
		c, err := anyllm.New(v.anyLLMBackend, model, opts...)
		if err != nil {
			return nil, err
		}
		return &clientBox{c}, nil
	}

	if baseURL == "" {
		baseURL = v.defaultBaseURL
	}
	if apiKey == "" {
		// Local compat servers (LM Studio, Swama) accept any non-empty key.
		apiKey = "not-needed"
	}
	c, err := openaicompat.New(apiKey, model, openaicompat.WithBaseURL(baseURL))
	if err != nil {
		return nil, err
	}
	return &clientBox{c}, nil
}

// clientBox exists only to give buildClient a single concrete return type
// across both client families.
type clientBox struct {
	llm.Client
}

// All returns the full model connector set.
func All() []Registration {
	regs := make([]Registration, 0, len(catalog))
	for _, v := range catalog {
		regs = append(regs, Registration{Spec: v.spec(), Factory: v.factory()})
	}
	return regs
}

// Register installs every model connector into reg. It fails on the first
// registration error (which only happens if reg already holds one of the
// catalog IDs).
func Register(reg *connector.Registry) error {
	for _, r := range All() {
		if err := reg.Register(r.Spec, r.Factory); err != nil {
			return err
		}
	}
	return nil
}
