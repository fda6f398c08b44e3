package schema

// FieldKind classifies a connector configuration field.
type FieldKind string

const (
	// KindString is a plain text field.
	KindString FieldKind = "string"

	// KindSecret is a sensitive credential field. Secret fields are bound at
	// configuration time and never exposed on a connector's narrowed surface.
	KindSecret FieldKind = "secret"

	// KindEnum is a field restricted to one of a fixed set of options.
	KindEnum FieldKind = "enum"
)

// IsValid reports whether k is a recognised field kind.
func (k FieldKind) IsValid() bool {
	return k == KindString || k == KindSecret || k == KindEnum
}

// Field declares one configuration input of a connector. Fields are ordered:
// a connector's field list is part of its public contract and is rendered in
// declaration order by UIs and API listings.
type Field struct {
	// Name is the machine identifier used as the key in invocation inputs
	// (e.g. "ha_token", "filter_domain").
	Name string `json:"name"`

	// DisplayName is the human-facing label shown by the workflow builder.
	DisplayName string `json:"display_name"`

	// Kind selects the field's type and secrecy handling.
	Kind FieldKind `json:"kind"`

	// Required marks fields that must be present when the adapter is built.
	Required bool `json:"required"`

	// Info is an optional hint rendered alongside the field
	// (e.g. "light, switch, sensor, etc. (Leave empty to fetch all)").
	Info string `json:"info,omitempty"`

	// Options lists the allowed values for KindEnum fields. Ignored otherwise.
	Options []string `json:"options,omitempty"`
}

// Secret reports whether the field holds sensitive material.
func (f Field) Secret() bool {
	return f.Kind == KindSecret
}
