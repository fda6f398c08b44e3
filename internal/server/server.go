// Package server exposes the operator HTTP API of the Loom runtime.
//
// The API serves two surfaces:
//
//   - /v1/connectors — the full connector catalog and ad-hoc invocation,
//     where the caller supplies every field value including secrets;
//   - /v1/instances — configured connector bindings whose options (and
//     credentials) were resolved from the config file at startup.
//
// Invocation results are always [schema.Data] envelopes with HTTP 200;
// only routing-level problems (unknown connector, invalid construction
// inputs, malformed JSON) surface as non-200 responses.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loomworks/loom/internal/callbacks"
	"github.com/loomworks/loom/internal/observe"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// maxBodyBytes caps the size of an invocation request body.
const maxBodyBytes = 1 << 20

// Instance is a connector bound to a fixed option set from the config file.
// The adapter is built once at startup so that construction problems (a
// missing token, a bad URL) fail fast rather than on first use.
type Instance struct {
	Name        string
	ConnectorID string
	Options     connector.Inputs
	Expose      bool

	adapter connector.Adapter
}

// BuildInstance resolves the connector in reg and constructs the bound
// adapter from options.
func BuildInstance(reg *connector.Registry, name, connectorID string, options map[string]any, expose bool) (*Instance, error) {
	factory, err := reg.Resolve(connectorID)
	if err != nil {
		return nil, fmt.Errorf("server: instance %q: %w", name, err)
	}
	ad, err := factory(connector.Inputs(options))
	if err != nil {
		return nil, fmt.Errorf("server: instance %q: %w", name, err)
	}
	return &Instance{
		Name:        name,
		ConnectorID: connectorID,
		Options:     connector.Inputs(options),
		Expose:      expose,
		adapter:     ad,
	}, nil
}

// Adapter returns the adapter bound at construction time.
func (i *Instance) Adapter() connector.Adapter { return i.adapter }

// SetAdapter replaces the bound adapter. The wiring layer uses it after all
// instances exist, when an adapter is recomposed with failover targets that
// reference other instances by name. Must happen before the instance is
// handed to any serving surface.
func (i *Instance) SetAdapter(ad connector.Adapter) { i.adapter = ad }

// Tool returns the instance's narrowed tool surface, if its adapter offers
// one. Secrets from Options are already bound inside the handler.
func (i *Instance) Tool() (connector.Tool, bool) {
	n, ok := i.adapter.(connector.Narrower)
	if !ok {
		return connector.Tool{}, false
	}
	return n.Tool(), true
}

// Server handles the operator HTTP API.
type Server struct {
	registry  *connector.Registry
	callbacks callbacks.Service
	instances []*Instance
	byName    map[string]*Instance
	checkers  []Checker
}

// Option configures a [Server].
type Option func(*Server)

// WithInstances registers configured instances on the server.
func WithInstances(instances ...*Instance) Option {
	return func(s *Server) {
		for _, inst := range instances {
			s.instances = append(s.instances, inst)
			s.byName[inst.Name] = inst
		}
	}
}

// WithCheckers adds readiness checks evaluated by /readyz.
func WithCheckers(checkers ...Checker) Option {
	return func(s *Server) {
		s.checkers = append(s.checkers, checkers...)
	}
}

// New creates a [Server] backed by reg. The callback service provides the
// invocation lifecycle handlers; it may be nil, in which case invocations
// run unobserved.
func New(reg *connector.Registry, svc callbacks.Service, opts ...Option) *Server {
	s := &Server{
		registry:  reg,
		callbacks: svc,
		byName:    make(map[string]*Instance),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes adds the /v1 API routes to mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/connectors", s.handleListConnectors)
	mux.HandleFunc("POST /v1/connectors/{id}/invoke", s.handleInvokeConnector)
	mux.HandleFunc("GET /v1/instances", s.handleListInstances)
	mux.HandleFunc("POST /v1/instances/{name}/invoke", s.handleInvokeInstance)
}

// Handler builds the complete operator handler: API routes, health probes,
// and the Prometheus /metrics endpoint, wrapped in the tracing middleware.
func (s *Server) Handler(m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(m)(mux)
}

func (s *Server) handleListConnectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": s.registry.List(),
	})
}

func (s *Server) handleInvokeConnector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	factory, err := s.registry.Resolve(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	inputs, err := decodeInputs(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ad, err := factory(inputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, s.invoke(r, id, ad, inputs))
}

func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	type instanceInfo struct {
		Name        string   `json:"name"`
		Connector   string   `json:"connector"`
		DisplayName string   `json:"display_name,omitempty"`
		Expose      bool     `json:"expose"`
		SecretsSet  []string `json:"secrets_set,omitempty"`
	}
	infos := make([]instanceInfo, 0, len(s.instances))
	for _, inst := range s.instances {
		info := instanceInfo{
			Name:      inst.Name,
			Connector: inst.ConnectorID,
			Expose:    inst.Expose,
		}
		if spec, err := s.registry.Lookup(inst.ConnectorID); err == nil {
			info.DisplayName = spec.DisplayName
			// Names only, never values: lets an operator confirm which
			// credentials an instance carries.
			for _, name := range spec.SecretFieldNames() {
				if _, ok := inst.Options[name]; ok {
					info.SecretsSet = append(info.SecretsSet, name)
				}
			}
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": infos})
}

func (s *Server) handleInvokeInstance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	inst, ok := s.byName[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("server: unknown instance %q", name))
		return
	}

	overrides, err := decodeInputs(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ad := inst.Adapter()
	inputs := overrides
	if len(overrides) > 0 {
		// Per-request values layer over the bound options, so a rebuilt
		// adapter is needed to honour construction-time fields.
		merged := make(connector.Inputs, len(inst.Options)+len(overrides))
		for k, v := range inst.Options {
			merged[k] = v
		}
		for k, v := range overrides {
			merged[k] = v
		}
		factory, err := s.registry.Resolve(inst.ConnectorID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		ad, err = factory(merged)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		inputs = merged
	}

	writeJSON(w, http.StatusOK, s.invoke(r, inst.ConnectorID, ad, inputs))
}

// invoke runs one adapter invocation through the callback handler chain.
func (s *Server) invoke(r *http.Request, connectorID string, ad connector.Adapter, in connector.Inputs) *schema.Data {
	ctx := r.Context()

	var handlers []callbacks.Handler
	if s.callbacks != nil {
		handlers = callbacks.BuildCallbacks(s.callbacks)
	}
	for _, h := range handlers {
		ctx = h.OnInvokeStart(ctx, connectorID, in)
	}

	d := ad.Invoke(ctx, in)

	for idx := len(handlers) - 1; idx >= 0; idx-- {
		handlers[idx].OnInvokeEnd(ctx, connectorID, d)
	}
	return d
}

// decodeInputs reads the request body as a JSON object of field values.
// An empty body yields an empty input set.
func decodeInputs(w http.ResponseWriter, r *http.Request) (connector.Inputs, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("server: read request body: %w", err)
	}
	if len(body) == 0 {
		return connector.Inputs{}, nil
	}
	var in connector.Inputs
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, fmt.Errorf("server: decode request body: %w", err)
	}
	if in == nil {
		in = connector.Inputs{}
	}
	return in, nil
}

// writeError writes a JSON error response body {"error": "..."}.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line is already committed; all that is left is to
		// record the failure.
		slog.Error("response encoding failed", "err", err)
	}
}
