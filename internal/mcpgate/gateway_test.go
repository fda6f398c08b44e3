package mcpgate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/loom/internal/mcpgate"
	"github.com/loomworks/loom/internal/server"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// pingAdapter is a stub connector with a narrowed tool surface, used to
// drive the gateway over in-memory transports.
type pingAdapter struct {
	token string
}

var pingSpec = connector.Spec{
	ID:          "ping",
	DisplayName: "Ping",
	Fields: []schema.Field{
		{Name: "token", DisplayName: "Token", Kind: schema.KindSecret, Required: true},
		{Name: "target", DisplayName: "Target", Kind: schema.KindString},
	},
}

func pingFactory(in connector.Inputs) (connector.Adapter, error) {
	if err := in.Validate(pingSpec.Fields); err != nil {
		return nil, err
	}
	return &pingAdapter{token: in.String("token")}, nil
}

func (a *pingAdapter) Invoke(_ context.Context, in connector.Inputs) *schema.Data {
	if in.String("target") == "down" {
		return schema.FromError(errors.New("target unreachable"))
	}
	return schema.FromMap(map[string]any{
		"pong":  in.String("target"),
		"token": a.token,
	})
}

func (a *pingAdapter) Tool() connector.Tool {
	return connector.Tool{
		Name:        "ping_target",
		Description: "Ping a target host.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"target": map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, args connector.Inputs) *schema.Data {
			return a.Invoke(ctx, args)
		},
	}
}

func buildInstance(t *testing.T, reg *connector.Registry, name string, expose bool) *server.Instance {
	t.Helper()
	inst, err := server.BuildInstance(reg, name, "ping",
		map[string]any{"token": "tok-" + name}, expose)
	if err != nil {
		t.Fatalf("BuildInstance(%q): %v", name, err)
	}
	return inst
}

// connect runs g over in-memory transports and returns a connected session.
func connect(t *testing.T, g *mcpgate.Gateway) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = g.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func newPingRegistry(t *testing.T) *connector.Registry {
	t.Helper()
	reg := connector.NewRegistry()
	if err := reg.Register(pingSpec, pingFactory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func TestGateway_ExposesOnlyMarkedInstances(t *testing.T) {
	reg := newPingRegistry(t)
	exposed := buildInstance(t, reg, "prod", true)
	hidden := buildInstance(t, reg, "staging", false)

	g := mcpgate.New("0.0.1", []*server.Instance{exposed, hidden}, nil)

	tools := g.Tools()
	if len(tools) != 1 || tools[0] != "ping_target" {
		t.Fatalf("tools = %v, want [ping_target]", tools)
	}

	session := connect(t, g)
	count := 0
	for tool, err := range session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Tools: %v", err)
		}
		count++
		if tool.Name != "ping_target" {
			t.Errorf("unexpected tool %q", tool.Name)
		}
	}
	if count != 1 {
		t.Errorf("server lists %d tools, want 1", count)
	}
}

func TestGateway_CallTool(t *testing.T) {
	reg := newPingRegistry(t)
	inst := buildInstance(t, reg, "prod", true)

	g := mcpgate.New("0.0.1", []*server.Instance{inst}, nil)
	session := connect(t, g)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ping_target",
		Arguments: map[string]any{"target": "gateway.local"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatal("unexpected IsError result")
	}
	if len(result.Content) != 1 {
		t.Fatalf("got %d content blocks, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", result.Content[0])
	}
	// The bound token proves secrets were applied without the caller
	// supplying them.
	if want := `"token": "tok-prod"`; !strings.Contains(text.Text, want) {
		t.Errorf("text %q should contain %q", text.Text, want)
	}
}

func TestGateway_FailureEnvelopeBecomesIsError(t *testing.T) {
	reg := newPingRegistry(t)
	inst := buildInstance(t, reg, "prod", true)

	g := mcpgate.New("0.0.1", []*server.Instance{inst}, nil)
	session := connect(t, g)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ping_target",
		Arguments: map[string]any{"target": "down"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("failure envelope should set IsError")
	}
	text := result.Content[0].(*mcp.TextContent).Text
	if !strings.HasPrefix(text, "Error: ") {
		t.Errorf("text = %q, want Error: prefix", text)
	}
}

func TestGateway_DuplicateToolNamesSuffixed(t *testing.T) {
	reg := newPingRegistry(t)
	first := buildInstance(t, reg, "one", true)
	second := buildInstance(t, reg, "two", true)

	g := mcpgate.New("0.0.1", []*server.Instance{first, second}, nil)

	tools := g.Tools()
	if len(tools) != 2 {
		t.Fatalf("tools = %v, want 2 entries", tools)
	}
	if tools[0] != "ping_target" || tools[1] != "ping_target_two" {
		t.Errorf("tools = %v, want [ping_target ping_target_two]", tools)
	}
}
