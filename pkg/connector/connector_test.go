package connector

import (
	"errors"
	"testing"

	"github.com/loomworks/loom/pkg/schema"
)

var testFields = []schema.Field{
	{Name: "ha_token", Kind: schema.KindSecret, Required: true},
	{Name: "base_url", Kind: schema.KindString, Required: true},
	{Name: "filter_domain", Kind: schema.KindString},
}

func TestInputs_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      Inputs
		wantErr bool
	}{
		{
			name: "all required present",
			in:   Inputs{"ha_token": "tok", "base_url": "http://ha.local:8123"},
		},
		{
			name: "optional absent is fine",
			in:   Inputs{"ha_token": "tok", "base_url": "http://ha.local:8123"},
		},
		{
			name:    "missing secret",
			in:      Inputs{"base_url": "http://ha.local:8123"},
			wantErr: true,
		},
		{
			name:    "required present but empty",
			in:      Inputs{"ha_token": "", "base_url": "http://ha.local:8123"},
			wantErr: true,
		},
		{
			name: "unrecognised keys are ignored",
			in:   Inputs{"ha_token": "tok", "base_url": "u", "future_field": 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(testFields)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingField) {
					t.Errorf("Validate = %v, want ErrMissingField", err)
				}
			} else if err != nil {
				t.Errorf("Validate unexpected error: %v", err)
			}
		})
	}
}

func TestInputs_Accessors(t *testing.T) {
	t.Parallel()

	in := Inputs{
		"model":       "gpt-4o",
		"temperature": 0.7,
		"max_tokens":  256,
		"from_yaml":   int64(5),
		"from_ui":     "0.2",
	}

	if got := in.String("model"); got != "gpt-4o" {
		t.Errorf("String(model) = %q", got)
	}
	if got := in.String("absent"); got != "" {
		t.Errorf("String(absent) = %q, want empty", got)
	}
	if got := in.Float("temperature", 1); got != 0.7 {
		t.Errorf("Float(temperature) = %v", got)
	}
	if got := in.Float("absent", 1); got != 1 {
		t.Errorf("Float default = %v, want 1", got)
	}
	if got := in.Int("max_tokens", 0); got != 256 {
		t.Errorf("Int(max_tokens) = %v", got)
	}
	if got := in.Int("from_yaml", 0); got != 5 {
		t.Errorf("Int(from_yaml) = %v", got)
	}
	if got := in.Int("model", 9); got != 9 {
		t.Errorf("Int on non-numeric = %v, want default", got)
	}
	if got := in.Float("from_ui", 0); got != 0.2 {
		t.Errorf("Float on numeric string = %v, want 0.2", got)
	}
}

func TestSpec_SecretFieldNames(t *testing.T) {
	t.Parallel()

	s := Spec{ID: "homeassistant", Fields: testFields}
	got := s.SecretFieldNames()
	if len(got) != 1 || got[0] != "ha_token" {
		t.Errorf("SecretFieldNames = %v, want [ha_token]", got)
	}
}

func TestParametersSchema_ExcludesSecrets(t *testing.T) {
	t.Parallel()

	s := ParametersSchema(testFields)

	props, ok := s["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing from schema: %v", s)
	}
	if _, found := props["ha_token"]; found {
		t.Error("secret field leaked into narrowed parameter schema")
	}
	if _, found := props["base_url"]; !found {
		t.Error("base_url missing from schema")
	}
	if _, found := props["filter_domain"]; !found {
		t.Error("filter_domain missing from schema")
	}
	required, _ := s["required"].([]string)
	if len(required) != 1 || required[0] != "base_url" {
		t.Errorf("required = %v, want [base_url]", required)
	}
}

func TestParametersSchema_Enum(t *testing.T) {
	t.Parallel()

	s := ParametersSchema([]schema.Field{
		{Name: "mode", Kind: schema.KindEnum, Options: []string{"fast", "full"}},
	})
	props := s["properties"].(map[string]any)
	mode := props["mode"].(map[string]any)
	enum, ok := mode["enum"].([]string)
	if !ok || len(enum) != 2 {
		t.Errorf("enum = %v, want [fast full]", mode["enum"])
	}
}
