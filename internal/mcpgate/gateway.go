// Package mcpgate exposes configured connector instances as MCP tools over
// the streamable HTTP transport.
//
// Only instances marked for exposure are served, and each is offered
// through its narrowed tool surface: the tool schema declares the few
// parameters an autonomous caller may vary, while credentials and endpoints
// stay bound inside the handler closure. A failure envelope becomes an MCP
// result with IsError set; the gateway never maps connector failures to
// protocol errors.
package mcpgate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/loom/internal/callbacks"
	"github.com/loomworks/loom/internal/observe"
	"github.com/loomworks/loom/internal/server"
	"github.com/loomworks/loom/pkg/connector"
)

const serverName = "loom"

// Gateway serves exposed connector instances as MCP tools.
type Gateway struct {
	srv       *mcp.Server
	callbacks callbacks.Service
	tools     []string
}

// New builds a gateway from the exposed instances. Instances whose adapters
// offer no narrowed tool surface are skipped with a warning. When two
// exposed instances produce the same tool name, later ones are suffixed
// with the instance name to keep names unique.
//
// The callback service observes every tool invocation; it may be nil.
func New(version string, instances []*server.Instance, svc callbacks.Service) *Gateway {
	g := &Gateway{
		srv: mcp.NewServer(
			&mcp.Implementation{Name: serverName, Version: version},
			nil,
		),
		callbacks: svc,
	}

	seen := make(map[string]bool)
	for _, inst := range instances {
		if !inst.Expose {
			continue
		}
		tool, ok := inst.Tool()
		if !ok {
			slog.Warn("instance offers no tool surface, not exposing", "instance", inst.Name)
			continue
		}

		name := tool.Name
		if seen[name] {
			name = name + "_" + inst.Name
		}
		seen[name] = true

		g.srv.AddTool(
			&mcp.Tool{
				Name:        name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			},
			g.adaptHandler(inst.ConnectorID, tool),
		)
		g.tools = append(g.tools, name)
		slog.Info("exposed instance on agent gateway", "instance", inst.Name, "tool", name)
	}

	return g
}

// Tools returns the names of the exposed tools in registration order.
func (g *Gateway) Tools() []string {
	out := make([]string, len(g.tools))
	copy(out, g.tools)
	return out
}

// Handler returns the streamable HTTP handler serving the gateway,
// typically mounted at /mcp.
func (g *Gateway) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return g.srv }, nil)
}

// Run serves the gateway on the given transport until ctx is cancelled.
// Used with in-memory transports in tests; HTTP serving goes through
// [Gateway.Handler].
func (g *Gateway) Run(ctx context.Context, t mcp.Transport) error {
	return g.srv.Run(ctx, t)
}

// adaptHandler converts a connector tool into an MCP tool handler. The
// only protocol-level error is undecodable arguments; everything after
// that point is an envelope.
func (g *Gateway) adaptHandler(connectorID string, tool connector.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := connector.Inputs{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, fmt.Errorf("mcpgate: decode arguments for %q: %w", tool.Name, err)
			}
		}

		var handlers []callbacks.Handler
		if g.callbacks != nil {
			handlers = callbacks.BuildCallbacks(g.callbacks)
		}
		for _, h := range handlers {
			ctx = h.OnInvokeStart(ctx, connectorID, args)
		}

		d := tool.Handler(ctx, args)

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i].OnInvokeEnd(ctx, connectorID, d)
		}

		observe.Logger(ctx).Info("tool invoked",
			"tool", tool.Name,
			"connector", connectorID,
			"is_error", d.IsError(),
		)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: d.Text}},
			IsError: d.IsError(),
		}, nil
	}
}
