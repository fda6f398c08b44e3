// Package connector defines the contract every Loom integration fulfils: a
// [Spec] describing the connector's declared configuration fields, a
// [Factory] that builds a configured [Adapter], and the process-wide
// [Registry] mapping connector identifiers to both.
//
// Adapters are cheap, per-invocation objects. A caller resolves a factory
// from the registry, builds an adapter from an input set, invokes it once,
// and discards it. Adapters never propagate failures as Go errors from
// Invoke — every failure path terminates in a [schema.Data] envelope so that
// the workflow host can treat all invocation results uniformly as data.
package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/loomworks/loom/pkg/schema"
)

// Failure kinds surfaced by adapters. Internal call sites return these
// wrapped with context; the adapter boundary converts them into envelopes.
var (
	// ErrMissingField indicates a required configuration field was absent.
	ErrMissingField = errors.New("connector: missing required field")

	// ErrTransport indicates a network or HTTP failure on the external call.
	ErrTransport = errors.New("connector: transport failure")

	// ErrUnexpectedFormat indicates the external response had an
	// unrecognisable shape (not a list, mapping, or string).
	ErrUnexpectedFormat = errors.New("connector: unexpected response format")
)

// Spec is the immutable, registration-time description of a connector.
type Spec struct {
	// ID is the connector's unique identifier within a [Registry]
	// (e.g. "homeassistant", "openai").
	ID string `json:"id"`

	// DisplayName is the human-facing name shown by the workflow builder.
	DisplayName string `json:"display_name"`

	// Documentation is an optional URL to the upstream API documentation.
	Documentation string `json:"documentation,omitempty"`

	// Fields is the ordered list of declared configuration fields.
	Fields []schema.Field `json:"fields"`
}

// SecretFieldNames returns the names of all secret fields in declaration order.
func (s Spec) SecretFieldNames() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Secret() {
			names = append(names, f.Name)
		}
	}
	return names
}

// Inputs is the value set supplied when building or invoking an adapter,
// keyed by declared field name. Unrecognised keys are ignored for
// forward-compatibility.
type Inputs map[string]any

// String returns the value of key as a string. Missing keys and non-string
// values yield the empty string.
func (in Inputs) String(key string) string {
	s, _ := in[key].(string)
	return s
}

// Float returns the value of key as a float64, accepting the numeric types
// that YAML and JSON decoding produce plus numeric strings (field values
// entered in a UI arrive as strings). Returns def when absent or
// non-numeric.
func (in Inputs) Float(key string, def float64) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// Int returns the value of key as an int, accepting the numeric types that
// YAML and JSON decoding produce plus numeric strings. Returns def when
// absent or non-numeric.
func (in Inputs) Int(key string, def int) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return def
	default:
		return def
	}
}

// Validate checks in against the declared fields: every field marked
// required must be present with a non-empty string value. Unrecognised keys
// are not an error.
//
// Returns an error wrapping [ErrMissingField] naming the first absent field.
func (in Inputs) Validate(fields []schema.Field) error {
	for _, f := range fields {
		if !f.Required {
			continue
		}
		v, ok := in[f.Name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingField, f.Name)
		}
		if s, isStr := v.(string); isStr && s == "" {
			return fmt.Errorf("%w: %q", ErrMissingField, f.Name)
		}
	}
	return nil
}

// Adapter is a connector instance bound to resolved configuration values for
// one invocation context.
//
// Invoke performs exactly one external call and returns its result as an
// envelope. It never returns a Go error and never panics on external
// failures: transport errors, bad status codes, and malformed responses all
// become failure envelopes. Invoke blocks until the call completes, fails,
// or ctx is cancelled.
type Adapter interface {
	Invoke(ctx context.Context, in Inputs) *schema.Data
}

// Factory builds an [Adapter] from an input set. Construction-time problems
// (missing required fields, malformed options) are programmer- or
// operator-visible and are therefore returned as errors rather than
// envelopes.
type Factory func(in Inputs) (Adapter, error)

// Narrower is implemented by adapters that expose a reduced parameter
// surface to autonomous callers such as agents. The returned [Tool] declares
// only the connector's non-secret fields; secrets and endpoints are bound
// inside the handler closure at construction time.
type Narrower interface {
	Tool() Tool
}
