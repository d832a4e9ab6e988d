// Package mcp exposes graph queries on a loaded snapshot as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/imyousuf/codegraph/internal/graph"
)

const (
	serverName    = "codegraph"
	serverVersion = "1.0.0"
)

// Server answers MCP tool calls against one graph.
type Server struct {
	graph     graph.Graph
	mcpServer *mcp.Server
	log       *slog.Logger
}

// NewServer creates an MCP server on g with every graph tool registered.
func NewServer(g graph.Graph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		graph:     g,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		log:       logger,
	}
	s.registerTools()
	return s
}

// Run serves one session over t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.log.Info("mcp server started", "tools", len(toolNames))
	return s.mcpServer.Run(ctx, t)
}

// RunStdio serves over stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
