package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/loomworks/loom/internal/callbacks"
	"github.com/loomworks/loom/internal/server"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// echoAdapter is a minimal connector used to exercise the HTTP surface
// without external dependencies. It echoes the "message" input and reveals
// which api_key was bound, so merge behaviour is observable.
type echoAdapter struct {
	apiKey string
}

var echoSpec = connector.Spec{
	ID:          "echo",
	DisplayName: "Echo",
	Fields: []schema.Field{
		{Name: "api_key", DisplayName: "API Key", Kind: schema.KindSecret, Required: true},
		{Name: "message", DisplayName: "Message", Kind: schema.KindString},
	},
}

func echoFactory(in connector.Inputs) (connector.Adapter, error) {
	if err := in.Validate(echoSpec.Fields); err != nil {
		return nil, err
	}
	return &echoAdapter{apiKey: in.String("api_key")}, nil
}

func (a *echoAdapter) Invoke(_ context.Context, in connector.Inputs) *schema.Data {
	if msg := in.String("fail"); msg != "" {
		return schema.FromError(errors.New(msg))
	}
	return schema.FromMap(map[string]any{
		"echo": in.String("message"),
		"key":  a.apiKey,
	})
}

func (a *echoAdapter) Tool() connector.Tool {
	return connector.Tool{
		Name:       "echo_message",
		Parameters: connector.ParametersSchema(echoSpec.Fields),
		Handler: func(ctx context.Context, args connector.Inputs) *schema.Data {
			return a.Invoke(ctx, args)
		},
	}
}

// recordingHandler captures invocation lifecycle calls for assertions.
type recordingHandler struct {
	mu     sync.Mutex
	starts []string
	ends   []string
}

func (h *recordingHandler) OnInvokeStart(ctx context.Context, id string, _ connector.Inputs) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, id)
	return ctx
}

func (h *recordingHandler) OnInvokeEnd(_ context.Context, id string, _ *schema.Data) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, id)
}

type staticService struct {
	handlers []callbacks.Handler
}

func (s *staticService) CurrentHandlers() []callbacks.Handler { return s.handlers }

func newEchoRegistry(t *testing.T) *connector.Registry {
	t.Helper()
	reg := connector.NewRegistry()
	if err := reg.Register(echoSpec, echoFactory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListConnectors(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "GET", "/v1/connectors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Connectors []connector.Spec `json:"connectors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Connectors) != 1 || resp.Connectors[0].ID != "echo" {
		t.Errorf("unexpected catalog: %+v", resp.Connectors)
	}
	if len(resp.Connectors[0].Fields) != 2 {
		t.Errorf("got %d fields, want 2", len(resp.Connectors[0].Fields))
	}
}

func TestInvokeConnector(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "POST", "/v1/connectors/echo/invoke",
		`{"api_key": "sk-test", "message": "hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var d schema.Data
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if d.IsError() {
		t.Fatalf("unexpected failure envelope: %s", d.Text)
	}
	if d.Payload["echo"] != "hello" {
		t.Errorf("payload echo = %v, want %q", d.Payload["echo"], "hello")
	}
}

func TestInvokeConnector_UnknownID(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "POST", "/v1/connectors/nope/invoke", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown connector") {
		t.Errorf("body should name the failure: %s", rec.Body)
	}
}

func TestInvokeConnector_ConstructionError(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	// api_key is required; leaving it out fails adapter construction.
	rec := doRequest(t, mux, "POST", "/v1/connectors/echo/invoke", `{"message": "hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "api_key") {
		t.Errorf("body should name the missing field: %s", rec.Body)
	}
}

func TestInvokeConnector_MalformedBody(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "POST", "/v1/connectors/echo/invoke", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInvokeConnector_FailureEnvelopeIs200(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "POST", "/v1/connectors/echo/invoke",
		`{"api_key": "sk-test", "fail": "upstream exploded"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (failures are envelopes, not HTTP errors)", rec.Code)
	}

	var d schema.Data
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !d.IsError() {
		t.Fatal("expected a failure envelope")
	}
	if !strings.HasPrefix(d.Text, "Error: ") {
		t.Errorf("failure text = %q, want Error: prefix", d.Text)
	}
}

func TestInstances_ListAndInvoke(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)

	inst, err := server.BuildInstance(reg, "prod-echo", "echo",
		map[string]any{"api_key": "sk-bound", "message": "default"}, true)
	if err != nil {
		t.Fatalf("BuildInstance: %v", err)
	}

	mux := http.NewServeMux()
	server.New(reg, nil, server.WithInstances(inst)).Routes(mux)

	rec := doRequest(t, mux, "GET", "/v1/instances", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"prod-echo"`) {
		t.Errorf("instance listing missing name: %s", rec.Body)
	}
	if strings.Contains(rec.Body.String(), "sk-bound") {
		t.Errorf("instance listing must not leak bound secrets: %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"display_name":"Echo"`) {
		t.Errorf("instance listing missing connector display name: %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"secrets_set":["api_key"]`) {
		t.Errorf("instance listing should name (not value) bound secrets: %s", rec.Body)
	}

	// Invoking without a body uses the bound options.
	rec = doRequest(t, mux, "POST", "/v1/instances/prod-echo/invoke", "")
	var d schema.Data
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if d.Payload["key"] != "sk-bound" {
		t.Errorf("bound api_key not applied: %v", d.Payload)
	}

	// Request values layer over the bound options.
	rec = doRequest(t, mux, "POST", "/v1/instances/prod-echo/invoke", `{"message": "override"}`)
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if d.Payload["echo"] != "override" {
		t.Errorf("override not applied: %v", d.Payload)
	}
	if d.Payload["key"] != "sk-bound" {
		t.Errorf("bound api_key lost after merge: %v", d.Payload)
	}
}

func TestInvokeInstance_Unknown(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	mux := http.NewServeMux()
	server.New(reg, nil).Routes(mux)

	rec := doRequest(t, mux, "POST", "/v1/instances/missing/invoke", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInvoke_CallbacksObserveLifecycle(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)
	h := &recordingHandler{}
	svc := &staticService{handlers: []callbacks.Handler{h}}

	mux := http.NewServeMux()
	server.New(reg, svc).Routes(mux)

	doRequest(t, mux, "POST", "/v1/connectors/echo/invoke", `{"api_key": "sk-test"}`)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.starts) != 1 || h.starts[0] != "echo" {
		t.Errorf("starts = %v, want [echo]", h.starts)
	}
	if len(h.ends) != 1 || h.ends[0] != "echo" {
		t.Errorf("ends = %v, want [echo]", h.ends)
	}
}

func TestBuildInstance_Errors(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)

	if _, err := server.BuildInstance(reg, "x", "nope", nil, false); !errors.Is(err, connector.ErrUnknownConnector) {
		t.Errorf("unknown connector error = %v", err)
	}
	if _, err := server.BuildInstance(reg, "x", "echo", map[string]any{}, false); !errors.Is(err, connector.ErrMissingField) {
		t.Errorf("missing field error = %v", err)
	}
}

func TestInstance_ToolBindsSecrets(t *testing.T) {
	t.Parallel()
	reg := newEchoRegistry(t)

	inst, err := server.BuildInstance(reg, "prod-echo", "echo",
		map[string]any{"api_key": "sk-bound"}, true)
	if err != nil {
		t.Fatalf("BuildInstance: %v", err)
	}

	tool, ok := inst.Tool()
	if !ok {
		t.Fatal("echo adapter should offer a narrowed tool")
	}
	d := tool.Handler(context.Background(), connector.Inputs{"message": "via tool"})
	if d.Payload["key"] != "sk-bound" {
		t.Errorf("tool handler lost bound secret: %v", d.Payload)
	}
}
