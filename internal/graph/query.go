package graph

import (
	"regexp"
	"strings"
)

// paramPattern matches path parameters across router conventions:
// {id}, :id, <id>, <int:id>, [id], [...slug] and ${id}.
var paramPattern = regexp.MustCompile(`\$\{[^}]+\}|\{[^}]+\}|:[a-zA-Z_][a-zA-Z0-9_]*|<[^>]+>|\[[^\]]+\]`)

// NormalizePath rewrites framework-specific path parameters to ":param",
// drops the query string and trailing slash, and guarantees a leading slash.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}
	p = paramPattern.ReplaceAllString(p, ":param")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// DirectUsage reports whether a Contains edge leads from the function named
// fn to a target whose name contains model.
func DirectUsage(g Graph, fn, model string) bool {
	for _, f := range g.FindNodesByName(NodeFunction, fn) {
		if directUsage(g, f, model) {
			return true
		}
	}
	return false
}

func directUsage(g Graph, f NodeData, model string) bool {
	for _, e := range g.OutgoingEdges(NodeFunction, f.Name, f.File, EdgeContains) {
		if strings.Contains(e.Target.Data.Name, model) {
			return true
		}
	}
	return false
}

// IndirectUsage reports whether fn or any function reachable from it over
// Calls edges uses model directly. Visited functions are tracked by name,
// so cyclic call graphs terminate. A missing start function yields false.
func IndirectUsage(g Graph, fn, model string) bool {
	start := g.FindNodesByName(NodeFunction, fn)
	if len(start) == 0 {
		return false
	}
	visited := make(map[string]bool)
	for _, f := range start {
		if indirectUsage(g, f, model, visited) {
			return true
		}
	}
	return false
}

func indirectUsage(g Graph, f NodeData, model string, visited map[string]bool) bool {
	if visited[f.Name] {
		return false
	}
	visited[f.Name] = true
	if directUsage(g, f, model) {
		return true
	}
	for _, e := range g.OutgoingEdges(NodeFunction, f.Name, f.File, EdgeCalls) {
		if e.Target.Type != NodeFunction {
			continue
		}
		if indirectUsage(g, e.Target.Data, model, visited) {
			return true
		}
	}
	return false
}

// FindResources returns Endpoint and Page nodes matching path and verb.
// A candidate matches when its normalized path or raw name contains the
// normalized query; verbs compare case-insensitively and a candidate
// without a verb matches any verb.
func FindResources(g Graph, path, verb string) []Node {
	query := NormalizePath(path)
	var out []Node
	for _, nt := range []NodeType{NodeEndpoint, NodePage} {
		for _, nd := range g.FindNodesByType(nt) {
			if !strings.Contains(NormalizePath(nd.Name), query) && !strings.Contains(nd.Name, path) {
				continue
			}
			if !verbMatches(nd.MetaValue(MetaVerb), verb) {
				continue
			}
			out = append(out, Node{Type: nt, Data: nd})
		}
	}
	return out
}

func verbMatches(candidate, verb string) bool {
	if candidate == "" || verb == "" {
		return true
	}
	return strings.EqualFold(candidate, verb)
}

// FindHandlers returns every Function bound to endpoint by a Handler edge.
// Endpoints sharing the path but not the verb contribute nothing.
func FindHandlers(g Graph, endpoint NodeData) []NodeData {
	verb := endpoint.MetaValue(MetaVerb)
	var out []NodeData
	for _, e := range g.OutgoingEdges(NodeEndpoint, endpoint.Name, endpoint.File, EdgeHandler) {
		if verb != "" && e.Source.Data.MetaValue(MetaVerb) != verb {
			continue
		}
		out = append(out, e.Target.Data)
	}
	return out
}

// CountEdges returns the number of edges of type et.
func CountEdges(g Graph, et EdgeType) int {
	return len(g.EdgesOfType(et))
}
