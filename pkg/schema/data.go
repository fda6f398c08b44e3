// Package schema defines the shared value types exchanged between Loom
// connectors and the workflow host: the [Data] result envelope returned by
// every connector invocation, and the [Field] declarations that describe a
// connector's configuration surface.
package schema

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Data is the uniform result envelope produced by every connector invocation.
//
// Exactly one of two shapes is ever constructed:
//
//   - success: Payload holds the structured result and Text holds its
//     pretty-printed JSON rendering;
//   - failure: Payload is an empty map and Text holds a human-readable
//     error message.
//
// The invariant in both cases is that Text can be displayed to a user (or
// fed to a language model) without knowing the payload's shape. Consumers
// that need structure read Payload; everyone else reads Text.
type Data struct {
	// Payload is the structured result. Empty (but never nil) on failure.
	Payload map[string]any `json:"payload"`

	// Text is the human-readable rendering of Payload, or the error message.
	Text string `json:"text"`
}

// IsError reports whether d carries a failure rather than a result.
// A failure envelope always has an empty payload.
func (d *Data) IsError() bool {
	return len(d.Payload) == 0
}

// FromList wraps a list result into a Data envelope. The list is nested
// under a "result" key so that the payload is always a JSON object.
func FromList(items []any) *Data {
	return FromMap(map[string]any{"result": items})
}

// FromMap wraps a map result into a Data envelope, rendering Text as
// indented JSON. If the map cannot be marshalled (e.g. it contains a
// channel or func value) the envelope degrades to a failure.
func FromMap(payload map[string]any) *Data {
	if payload == nil {
		payload = map[string]any{}
	}
	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return FromError(fmt.Errorf("render payload: %w", err))
	}
	return &Data{Payload: payload, Text: string(text)}
}

// FromValue wraps an arbitrary invocation result into a Data envelope,
// mirroring the normalization rules every connector follows:
//
//   - []any          → FromList
//   - map[string]any → FromMap
//   - string         → failure envelope with the string as Text
//   - anything else  → failure envelope with a generic format error
func FromValue(v any) *Data {
	switch r := v.(type) {
	case []any:
		return FromList(r)
	case map[string]any:
		return FromMap(r)
	case string:
		return &Data{Payload: map[string]any{}, Text: r}
	default:
		return &Data{
			Payload: map[string]any{},
			Text:    "Error: unexpected response format",
		}
	}
}

// FromError converts err into a failure envelope. The Text is prefixed with
// "Error: " so that downstream consumers (and tests) can recognise failures
// without inspecting the payload.
func FromError(err error) *Data {
	return &Data{
		Payload: map[string]any{},
		Text:    "Error: " + err.Error(),
	}
}
