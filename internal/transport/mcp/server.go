// Package mcp exposes the assistant's tools to MCP clients.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xiaot623/estatehub/internal/tools"
)

const (
	serverName    = "estatehub"
	serverVersion = "0.1.0"
)

// NewServer builds an MCP server serving every tool in the registry.
func NewServer(registry *tools.Registry, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		Logger: logger,
	})
	for _, t := range registry.Tools() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		}, toolHandler(registry, t.Name, logger))
	}
	return server
}

// toolHandler runs a registry tool. Execution failures are reported as tool
// errors so the calling model can see them.
func toolHandler(registry *tools.Registry, name string, logger *slog.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := registry.Execute(ctx, name, req.Params.Arguments)
		if err != nil {
			logger.Warn("mcp tool failed", "tool", name, "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "error: " + err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
		}, nil
	}
}

// NewHandler serves the MCP server over streamable HTTP.
func NewHandler(server *mcp.Server, logger *slog.Logger) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{Logger: logger})
}

// ServeStdio serves the MCP server over stdin/stdout until ctx is done or the
// client disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
