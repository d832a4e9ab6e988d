package graph

import "strings"

// ArrayGraph is the linear-scan backend. Edges keep denormalized copies of
// their endpoint payloads, so renames must go through RenameNode.
type ArrayGraph struct {
	nodes  []Node
	edges  []Edge
	errors []string
}

// NewArrayGraph creates an empty linear-scan graph.
func NewArrayGraph() *ArrayGraph {
	return &ArrayGraph{}
}

// NewArrayGraphWithCapacity creates an empty linear-scan graph sized for
// roughly capacity nodes.
func NewArrayGraphWithCapacity(capacity int) *ArrayGraph {
	if capacity < 0 {
		capacity = 0
	}
	return &ArrayGraph{
		nodes: make([]Node, 0, capacity),
		edges: make([]Edge, 0, capacity*2),
	}
}

func (g *ArrayGraph) Kind() Kind { return KindArray }

func (g *ArrayGraph) AddNode(nt NodeType, nd NodeData) {
	g.nodes = append(g.nodes, Node{Type: nt, Data: nd})
}

func (g *ArrayGraph) AddNodeWithParent(nt NodeType, nd NodeData, parentType NodeType, parentFile string) {
	for _, n := range g.nodes {
		if n.Type == parentType && n.Data.File == parentFile {
			g.edges = append(g.edges, ContainsEdge(parentType, n.Data, nt, nd))
			break
		}
	}
	g.AddNode(nt, nd)
}

func (g *ArrayGraph) AddEdge(e Edge) {
	g.edges = append(g.edges, e)
}

func (g *ArrayGraph) AddError(msg string) {
	g.errors = append(g.errors, msg)
}

func (g *ArrayGraph) Extend(other Graph) {
	for _, n := range other.Nodes() {
		g.nodes = append(g.nodes, Node{Type: n.Type, Data: n.Data.Clone()})
	}
	for _, e := range other.Edges() {
		g.edges = append(g.edges, cloneEdge(e))
	}
	g.errors = append(g.errors, other.Errors()...)
}

func (g *ArrayGraph) Size() (int, int) {
	return len(g.nodes), len(g.edges)
}

func (g *ArrayGraph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *ArrayGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *ArrayGraph) Errors() []string {
	out := make([]string, len(g.errors))
	copy(out, g.errors)
	return out
}

func (g *ArrayGraph) FindNodesByType(nt NodeType) []NodeData {
	var out []NodeData
	for _, n := range g.nodes {
		if n.Type == nt {
			out = append(out, n.Data)
		}
	}
	return out
}

func (g *ArrayGraph) FindNodesByName(nt NodeType, name string) []NodeData {
	var out []NodeData
	for _, n := range g.nodes {
		if n.Type == nt && n.Data.Name == name {
			out = append(out, n.Data)
		}
	}
	return out
}

func (g *ArrayGraph) FindNodeInFile(nt NodeType, name, file string) (NodeData, bool) {
	for _, n := range g.nodes {
		if n.Type == nt && n.Data.Name == name && n.Data.File == file {
			return n.Data, true
		}
	}
	return NodeData{}, false
}

func (g *ArrayGraph) FindNodeAt(nt NodeType, file string, line int) (NodeData, bool) {
	for _, n := range g.nodes {
		if n.Type == nt && n.Data.File == file && spanContains(n.Data, line) {
			return n.Data, true
		}
	}
	return NodeData{}, false
}

func (g *ArrayGraph) FindNodeStartingAt(nt NodeType, file string, line int) (NodeData, bool) {
	for _, n := range g.nodes {
		if n.Type == nt && n.Data.File == file && n.Data.Start == line {
			return n.Data, true
		}
	}
	return NodeData{}, false
}

func (g *ArrayGraph) FindNodesByFileSuffix(nt NodeType, suffix string) []NodeData {
	var out []NodeData
	for _, n := range g.nodes {
		if n.Type == nt && strings.HasSuffix(n.Data.File, suffix) {
			out = append(out, n.Data)
		}
	}
	return out
}

func (g *ArrayGraph) FindNodeByNameFileSuffix(nt NodeType, name, suffix string) (NodeData, bool) {
	for _, n := range g.nodes {
		if n.Type == nt && n.Data.Name == name && strings.HasSuffix(n.Data.File, suffix) {
			return n.Data, true
		}
	}
	return NodeData{}, false
}

func (g *ArrayGraph) FindEndpoint(name, file, verb string) (NodeData, bool) {
	for _, n := range g.nodes {
		if n.Type == NodeEndpoint && n.Data.Name == name && n.Data.File == file &&
			n.Data.MetaValue(MetaVerb) == verb {
			return n.Data, true
		}
	}
	return NodeData{}, false
}

func (g *ArrayGraph) EdgesOfType(et EdgeType) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func (g *ArrayGraph) OutgoingEdges(nt NodeType, name, file string, et EdgeType) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Type == et && e.Source.Type == nt && e.Source.Data.Name == name && e.Source.Data.File == file {
			out = append(out, e)
		}
	}
	return out
}

func (g *ArrayGraph) RenameNode(nt NodeType, name, file, newName string) (bool, int) {
	return g.rename(nt, name, file, newName, firstRenamed)
}

func (g *ArrayGraph) RenameEndpoint(name, file, verb, newName string) (bool, int) {
	return g.rename(NodeEndpoint, name, file, newName, verbRenamed(verb))
}

// rename renames the candidate chosen by pick among the nodes identified by
// (nt, name, file). Edge copies follow when they bind to that candidate.
func (g *ArrayGraph) rename(nt NodeType, name, file, newName string, pick func([]NodeData) int) (bool, int) {
	var idx []int
	var cands []NodeData
	for i, n := range g.nodes {
		if n.Type == nt && n.Data.Name == name && n.Data.File == file {
			idx = append(idx, i)
			cands = append(cands, n.Data)
		}
	}
	if len(cands) == 0 {
		return false, 0
	}
	target := pick(cands)
	if target < 0 {
		return false, 0
	}
	g.nodes[idx[target]].Data.Name = newName

	binds := func(n Node) bool {
		return n.Type == nt && n.Data.Name == name && n.Data.File == file && bindIndex(cands, n.Data) == target
	}
	updated := 0
	for i := range g.edges {
		e := &g.edges[i]
		if binds(e.Source) {
			e.Source.Data.Name = newName
			updated++
		}
		if binds(e.Target) {
			e.Target.Data.Name = newName
			updated++
		}
	}
	return true, updated
}

func (g *ArrayGraph) Filter(files []string) Graph {
	allow := fileSet(files)
	out := NewArrayGraph()
	for _, n := range g.nodes {
		if n.Type == NodeRepository || allow[n.Data.File] {
			out.nodes = append(out.nodes, Node{Type: n.Type, Data: n.Data.Clone()})
		}
	}
	for _, e := range g.edges {
		if allow[e.Source.Data.File] || allow[e.Target.Data.File] {
			out.edges = append(out.edges, cloneEdge(e))
		}
	}
	out.errors = append(out.errors, g.errors...)
	return out
}

func (g *ArrayGraph) PrefixPaths(root string) {
	for i := range g.nodes {
		g.nodes[i].Data.File = prefixPath(root, g.nodes[i].Data.File)
	}
	for i := range g.edges {
		g.edges[i].Source.Data.File = prefixPath(root, g.edges[i].Source.Data.File)
		g.edges[i].Target.Data.File = prefixPath(root, g.edges[i].Target.Data.File)
	}
}

func (g *ArrayGraph) Prune(rule PruneRule) int {
	keep := parentsWithChildren(g.nodes, rule)
	removed := make(map[string]bool)
	nodes := g.nodes[:0]
	for _, n := range g.nodes {
		if n.Type == rule.Parent && !keep[n.Data.Name] {
			removed[n.Key()] = true
			continue
		}
		nodes = append(nodes, n)
	}
	count := len(g.nodes) - len(nodes)
	g.nodes = nodes
	if count == 0 {
		return 0
	}
	edges := g.edges[:0]
	for _, e := range g.edges {
		if removed[e.Source.Key()] || removed[e.Target.Key()] {
			continue
		}
		edges = append(edges, e)
	}
	g.edges = edges
	return count
}

// parentsWithChildren returns the parent names referenced by at least one
// child through rule.ChildMetaKey.
func parentsWithChildren(nodes []Node, rule PruneRule) map[string]bool {
	keep := make(map[string]bool)
	for _, n := range nodes {
		if n.Type != rule.Child {
			continue
		}
		if v := n.Data.MetaValue(rule.ChildMetaKey); v != "" {
			keep[v] = true
		}
	}
	return keep
}

func cloneEdge(e Edge) Edge {
	c := Edge{
		Type:   e.Type,
		Source: Node{Type: e.Source.Type, Data: e.Source.Data.Clone()},
		Target: Node{Type: e.Target.Type, Data: e.Target.Data.Clone()},
	}
	if e.Calls != nil {
		meta := *e.Calls
		c.Calls = &meta
	}
	return c
}
