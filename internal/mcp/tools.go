package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/imyousuf/codegraph/internal/graph"
)

// Arguments structs

type StatsArgs struct{}

type ResourceArgs struct {
	Path string `json:"path" jsonschema:"URL path, e.g. /people/:id"`
	Verb string `json:"verb,omitempty" jsonschema:"HTTP verb filter, e.g. GET"`
}

type UsageArgs struct {
	Function string `json:"function" jsonschema:"function name"`
	Model    string `json:"model" jsonschema:"data model name"`
	Indirect bool   `json:"indirect,omitempty" jsonschema:"follow calls transitively"`
}

type NodesArgs struct {
	Type string `json:"type" jsonschema:"node type, e.g. Function or DataModel"`
	Name string `json:"name,omitempty" jsonschema:"exact node name"`
}

var toolNames = []string{"graph_stats", "find_resources", "find_handlers", "data_model_usage", "find_nodes"}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Counts the nodes and edges of the graph per type",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args StatsArgs) (*mcp.CallToolResult, any, error) {
		stats := graph.Summary(s.graph)
		var b strings.Builder
		fmt.Fprintf(&b, "%d nodes, %d edges, %d errors\n", stats.NodeCount, stats.EdgeCount, stats.ErrorCount)
		for _, nt := range sortedKeys(stats.NodesByType) {
			fmt.Fprintf(&b, "node %s: %d\n", nt, stats.NodesByType[nt])
		}
		for _, et := range sortedKeys(stats.EdgesByType) {
			fmt.Fprintf(&b, "edge %s: %d\n", et, stats.EdgesByType[et])
		}
		return textResult(b.String()), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_resources",
		Description: "Finds endpoints and pages whose path matches, optionally filtered by HTTP verb",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ResourceArgs) (*mcp.CallToolResult, any, error) {
		path := strings.TrimSpace(args.Path)
		if path == "" {
			return errorResult("path is required"), nil, nil
		}
		nodes := graph.FindResources(s.graph, path, strings.ToUpper(args.Verb))
		if len(nodes) == 0 {
			return textResult("No results found."), nil, nil
		}
		var b strings.Builder
		for _, n := range nodes {
			fmt.Fprintf(&b, "%s %s %s (%s)\n", n.Type, n.Data.MetaValue(graph.MetaVerb), n.Data.Name, n.Data.File)
		}
		return textResult(b.String()), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_handlers",
		Description: "Lists the handler functions of the endpoints matching a path",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ResourceArgs) (*mcp.CallToolResult, any, error) {
		path := strings.TrimSpace(args.Path)
		if path == "" {
			return errorResult("path is required"), nil, nil
		}
		var b strings.Builder
		for _, n := range graph.FindResources(s.graph, path, strings.ToUpper(args.Verb)) {
			if n.Type != graph.NodeEndpoint {
				continue
			}
			for _, fn := range graph.FindHandlers(s.graph, n.Data) {
				fmt.Fprintf(&b, "%s %s -> %s (%s)\n", n.Data.MetaValue(graph.MetaVerb), n.Data.Name, fn.Name, fn.File)
			}
		}
		if b.Len() == 0 {
			return textResult("No results found."), nil, nil
		}
		return textResult(b.String()), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "data_model_usage",
		Description: "Reports whether a function uses a data model, directly or through calls",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args UsageArgs) (*mcp.CallToolResult, any, error) {
		if args.Function == "" || args.Model == "" {
			return errorResult("function and model are required"), nil, nil
		}
		used := graph.DirectUsage(s.graph, args.Function, args.Model)
		if args.Indirect {
			used = graph.IndirectUsage(s.graph, args.Function, args.Model)
		}
		s.log.Debug("usage query", "function", args.Function, "model", args.Model, "indirect", args.Indirect, "used", used)
		return textResult(fmt.Sprintf("%t", used)), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_nodes",
		Description: "Lists nodes of a type, optionally with an exact name",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args NodesArgs) (*mcp.CallToolResult, any, error) {
		if args.Type == "" {
			return errorResult("type is required"), nil, nil
		}
		nt := graph.NodeType(args.Type)
		nodes := s.graph.FindNodesByType(nt)
		if args.Name != "" {
			nodes = s.graph.FindNodesByName(nt, args.Name)
		}
		if len(nodes) == 0 {
			return textResult("No results found."), nil, nil
		}
		var b strings.Builder
		for _, nd := range nodes {
			fmt.Fprintf(&b, "%s (%s)\n", nd.Name, nd.File)
		}
		return textResult(b.String()), nil, nil
	})
}

func sortedKeys[K ~string](m map[K]int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
