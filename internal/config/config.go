// Package config provides the configuration schema, loader, and file watcher
// for the Loom connector runtime.
package config

// LogLevel controls log verbosity for the Loom server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Loom.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Instances []InstanceConfig `yaml:"instances"`
}

// ServerConfig holds network and logging settings for the Loom server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// InstanceConfig binds a connector to a set of option values, typically
// including credentials. An instance is the unit exposed on the serving
// surfaces: the operator API can invoke it with its bound options as
// defaults, and — when Expose is set — the agent gateway offers it as a
// tool with the credentials already applied.
type InstanceConfig struct {
	// Name is a unique identifier for this instance (used in logs and URLs).
	Name string `yaml:"name"`

	// Connector selects the registered connector this instance is built from
	// (e.g., "homeassistant", "openai").
	Connector string `yaml:"connector"`

	// Options holds the connector field values bound to this instance,
	// keyed by field name. Secrets (API keys, tokens) live here so that
	// agent-facing callers never have to supply them.
	Options map[string]any `yaml:"options"`

	// Expose makes this instance available as a tool on the agent gateway.
	Expose bool `yaml:"expose"`

	// Fallbacks names other model-connector instances whose backends serve
	// a completion when this instance's backend fails or its circuit
	// breaker is open, tried in order. Only meaningful for model
	// connectors.
	Fallbacks []string `yaml:"fallbacks"`
}
