// ABOUTME: MCP session implementation over the mark3labs/mcp-go client
// ABOUTME: Backs both the stdio subprocess and SSE push-stream transport kinds

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
)

const (
	clientName    = "toolgate"
	clientVersion = "0.2.0"
)

// mcpSession adapts an MCP client to the Session contract. The same adapter
// serves both transport kinds; only construction differs.
type mcpSession struct {
	client *client.Client
	server string
}

// dialStdio spawns the backend subprocess and wires its pipes.
func dialStdio(_ context.Context, srv config.Server) (Session, error) {
	env := make([]string, 0, len(srv.Env))
	for k, v := range srv.Env {
		env = append(env, k+"="+v)
	}

	c, err := client.NewStdioMCPClient(srv.Command, env, srv.Args...)
	if err != nil {
		return nil, errkind.Wrap(errkind.Connection, "spawning "+srv.Name, err)
	}
	return &mcpSession{client: c, server: srv.Name}, nil
}

// dialSSE opens the HTTP push stream to the backend.
func dialSSE(ctx context.Context, srv config.Server) (Session, error) {
	c, err := client.NewSSEMCPClient(srv.URL)
	if err != nil {
		return nil, errkind.Wrap(errkind.Connection, "creating sse client for "+srv.Name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, errkind.Wrap(errkind.Connection, "starting sse stream for "+srv.Name, err)
	}
	return &mcpSession{client: c, server: srv.Name}, nil
}

// Initialize performs the MCP capability handshake.
func (s *mcpSession) Initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := s.client.Initialize(ctx, req); err != nil {
		return fmt.Errorf("mcp initialize: %w", err)
	}
	return nil
}

// ListTools fetches the backend's current tool descriptors.
func (s *mcpSession) ListTools(ctx context.Context) ([]ToolDef, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errkind.Wrap(errkind.Connection, "listing tools on "+s.server, err)
	}

	defs := make([]ToolDef, 0, len(res.Tools))
	for _, tool := range res.Tools {
		schema := tool.RawInputSchema
		if len(schema) == 0 {
			marshaled, err := json.Marshal(tool.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("marshaling schema for tool %q: %w", tool.Name, err)
			}
			schema = marshaled
		}
		defs = append(defs, ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// Call invokes a backend tool and flattens its textual content.
func (s *mcpSession) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := s.client.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errkind.Wrap(errkind.Timeout, "invoking "+tool+" on "+s.server, err)
		}
		return "", errkind.Wrap(errkind.ToolExecution, "invoking "+tool+" on "+s.server, err)
	}

	text := flattenContent(res.Content)
	if res.IsError {
		return "", errkind.Newf(errkind.ToolExecution, "tool %s on %s reported an error: %s", tool, s.server, text)
	}
	if text == "" {
		text = "No content"
	}
	return text, nil
}

// Close releases the underlying transport.
func (s *mcpSession) Close() error {
	return s.client.Close()
}

// flattenContent joins the text parts of a tool result.
func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
