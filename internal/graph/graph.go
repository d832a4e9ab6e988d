package graph

import (
	"fmt"
	"path"
	"strings"
)

// Kind selects a Graph backend.
type Kind string

const (
	// KindArray is the linear-scan backend.
	KindArray Kind = "array"
	// KindIndexed is the arena/handle backend with ordered indexes.
	KindIndexed Kind = "indexed"
)

// PruneRule removes Parent nodes that end up without any Child node whose
// ChildMetaKey value names them.
type PruneRule struct {
	Parent       NodeType `mapstructure:"parent" yaml:"parent" json:"parent"`
	Child        NodeType `mapstructure:"child" yaml:"child" json:"child"`
	ChildMetaKey string   `mapstructure:"child_meta_key" yaml:"child_meta_key" json:"child_meta_key"`
}

// Graph is the storage and lookup contract shared by every backend. Both
// backends must answer every method identically for the same input.
type Graph interface {
	// Kind reports the backend.
	Kind() Kind

	// AddNode appends a node. Duplicates are permitted.
	AddNode(nt NodeType, nd NodeData)

	// AddNodeWithParent appends a node and a Contains edge from the first
	// parentType node located in parentFile, when one exists.
	AddNodeWithParent(nt NodeType, nd NodeData, parentType NodeType, parentFile string)

	// AddEdge appends an edge.
	AddEdge(e Edge)

	// AddError records a recoverable extraction or linking problem.
	AddError(msg string)

	// Extend appends another graph's nodes, edges and errors.
	Extend(other Graph)

	// Size returns the node and edge counts.
	Size() (nodes, edges int)

	Nodes() []Node
	Edges() []Edge
	Errors() []string

	FindNodesByType(nt NodeType) []NodeData
	FindNodesByName(nt NodeType, name string) []NodeData
	FindNodeInFile(nt NodeType, name, file string) (NodeData, bool)

	// FindNodeAt returns the first node of type nt in file whose span
	// contains line.
	FindNodeAt(nt NodeType, file string, line int) (NodeData, bool)

	// FindNodeStartingAt returns the first node of type nt in file that
	// starts exactly at line.
	FindNodeStartingAt(nt NodeType, file string, line int) (NodeData, bool)

	FindNodesByFileSuffix(nt NodeType, suffix string) []NodeData
	FindNodeByNameFileSuffix(nt NodeType, name, suffix string) (NodeData, bool)

	// FindEndpoint looks an Endpoint up by name, file and verb.
	FindEndpoint(name, file, verb string) (NodeData, bool)

	// EdgesOfType returns all edges of the given type. Calls edges match on
	// the variant alone, whatever call-site metadata they carry.
	EdgesOfType(et EdgeType) []Edge

	// OutgoingEdges returns edges of type et whose source is the node
	// identified by (nt, name, file).
	OutgoingEdges(nt NodeType, name, file string, et EdgeType) []Edge

	// RenameNode renames the first node identified by (nt, name, file) and
	// every edge copy of it. It reports whether a node was renamed and how
	// many edge endpoints now carry the new name.
	RenameNode(nt NodeType, name, file, newName string) (bool, int)

	// RenameEndpoint is RenameNode for the Endpoint identified by (name,
	// file, verb). Endpoints sharing a path but not the verb keep their name.
	RenameEndpoint(name, file, verb, newName string) (bool, int)

	// Filter returns a new graph of the same backend holding Repository
	// nodes, nodes whose file is listed, and edges with at least one listed
	// endpoint file.
	Filter(files []string) Graph

	// PrefixPaths roots every node and edge-endpoint file under root.
	PrefixPaths(root string)

	// Prune applies rule and returns the number of removed nodes.
	Prune(rule PruneRule) int
}

// New returns an empty graph of the requested backend. capacity is a hint
// for the expected number of nodes.
func New(kind Kind, capacity int) (Graph, error) {
	switch kind {
	case KindArray, "":
		return NewArrayGraphWithCapacity(capacity), nil
	case KindIndexed:
		return NewIndexedGraphWithCapacity(capacity), nil
	default:
		return nil, fmt.Errorf("unknown graph backend %q", kind)
	}
}

// ParseKind parses a backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindArray, "":
		return KindArray, nil
	case KindIndexed, "btree":
		return KindIndexed, nil
	default:
		return "", fmt.Errorf("unknown graph backend %q", s)
	}
}

// Summary computes per-type counts of g.
func Summary(g Graph) *Stats {
	s := &Stats{
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[EdgeType]int),
	}
	for _, n := range g.Nodes() {
		s.NodesByType[n.Type]++
	}
	for _, e := range g.Edges() {
		s.EdgesByType[e.Type]++
	}
	s.NodeCount, s.EdgeCount = g.Size()
	s.ErrorCount = len(g.Errors())
	return s
}

func prefixPath(root, file string) string {
	if file == "" {
		return root
	}
	trailing := strings.HasSuffix(file, "/")
	p := path.Join(root, file)
	if trailing {
		p += "/"
	}
	return p
}

func fileSet(files []string) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set
}

func spanContains(nd NodeData, line int) bool {
	return nd.Start <= line && line <= nd.End
}

// bindIndex picks which of several nodes sharing an identity an edge
// endpoint carrying want refers to: the first with the same start line and
// verb, then the first with the same verb, then the first.
func bindIndex(cands []NodeData, want NodeData) int {
	verb := want.MetaValue(MetaVerb)
	sameVerb := -1
	for i, c := range cands {
		if c.MetaValue(MetaVerb) != verb {
			continue
		}
		if c.Start == want.Start {
			return i
		}
		if sameVerb < 0 {
			sameVerb = i
		}
	}
	if sameVerb >= 0 {
		return sameVerb
	}
	return 0
}

func samePayload(a, b NodeData) bool {
	return a.Start == b.Start && a.MetaValue(MetaVerb) == b.MetaValue(MetaVerb)
}

// firstRenamed picks the first candidate.
func firstRenamed([]NodeData) int { return 0 }

// verbRenamed picks the first candidate carrying verb, or -1.
func verbRenamed(verb string) func([]NodeData) int {
	return func(cands []NodeData) int {
		for i, c := range cands {
			if c.MetaValue(MetaVerb) == verb {
				return i
			}
		}
		return -1
	}
}
