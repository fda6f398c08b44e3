package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Whether each instance's connector name resolves to a registered
// connector is checked at startup, after the registry is populated.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	namesSeen := make(map[string]int, len(cfg.Instances))
	exposed := 0

	for i, inst := range cfg.Instances {
		prefix := fmt.Sprintf("instances[%d]", i)
		if inst.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[inst.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of instances[%d]", prefix, inst.Name, prev))
			}
			namesSeen[inst.Name] = i
		}
		if inst.Connector == "" {
			errs = append(errs, fmt.Errorf("%s.connector is required", prefix))
		}
		if inst.Expose {
			exposed++
		}
	}

	// Fallback references are resolved against the full instance set, so
	// they are checked after every name is known.
	for i, inst := range cfg.Instances {
		for _, fb := range inst.Fallbacks {
			switch {
			case fb == inst.Name:
				errs = append(errs, fmt.Errorf("instances[%d].fallbacks must not reference the instance itself", i))
			default:
				if _, ok := namesSeen[fb]; !ok {
					errs = append(errs, fmt.Errorf("instances[%d].fallbacks references unknown instance %q", i, fb))
				}
			}
		}
	}

	if len(cfg.Instances) > 0 && exposed == 0 {
		slog.Warn("no instance has expose: true; the agent gateway will serve no tools")
	}

	return errors.Join(errs...)
}
