package connector

import (
	"context"

	"github.com/loomworks/loom/pkg/schema"
)

// Tool is the narrowed invocation surface an adapter exposes to autonomous
// callers. Its parameter schema covers only the connector's non-secret
// fields; credentials and endpoints are captured in the Handler closure when
// the adapter is built and are never visible to the caller.
type Tool struct {
	// Name is the tool's unique identifier presented to the agent
	// (e.g. "list_homeassistant_states").
	Name string

	// Description explains what the tool does, phrased for a language model.
	Description string

	// Parameters is the JSON Schema describing the tool's input object.
	Parameters map[string]any

	// Handler executes the tool with JSON-decoded arguments and returns the
	// envelope. Like [Adapter.Invoke], it never returns a Go error:
	// failures are envelopes too.
	Handler func(ctx context.Context, args Inputs) *schema.Data
}

// ParametersSchema builds a JSON Schema object for the given non-secret
// fields. Secret fields are skipped even if passed in, as a guard against a
// connector accidentally declaring a credential on its narrowed surface.
func ParametersSchema(fields []schema.Field) map[string]any {
	props := map[string]any{}
	var required []string
	for _, f := range fields {
		if f.Secret() {
			continue
		}
		prop := map[string]any{"type": "string"}
		if f.Info != "" {
			prop["description"] = f.Info
		}
		if f.Kind == schema.KindEnum && len(f.Options) > 0 {
			prop["enum"] = f.Options
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
