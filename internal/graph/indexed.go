package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
)

// slot is one arena entry. Phantom slots hold edge endpoints that were
// referenced before (or without) a matching node being added.
type slot struct {
	node    Node
	live    bool
	phantom bool
}

type handleEdge struct {
	typ   EdgeType
	calls *CallsMeta
	src   int
	dst   int
}

// IndexedGraph is the arena backend. Nodes get a stable integer handle at
// insertion; edges are handle pairs resolved against the arena on demand,
// so renaming a node is visible through every edge at once.
type IndexedGraph struct {
	arena    []slot
	edges    []handleEdge
	errors   []string
	live     int
	phantoms map[string][]int // identity key, phantom handles
	byName   *treemap.Map     // type, name, file, handle
	byFile   *treemap.Map     // type, file, handle
	out      map[int][]int
}

// NewIndexedGraph creates an empty indexed graph.
func NewIndexedGraph() *IndexedGraph {
	return NewIndexedGraphWithCapacity(0)
}

// NewIndexedGraphWithCapacity creates an empty indexed graph sized for
// roughly capacity nodes.
func NewIndexedGraphWithCapacity(capacity int) *IndexedGraph {
	if capacity < 0 {
		capacity = 0
	}
	return &IndexedGraph{
		arena:    make([]slot, 0, capacity),
		edges:    make([]handleEdge, 0, capacity*2),
		phantoms: make(map[string][]int),
		byName:   treemap.NewWithStringComparator(),
		byFile:   treemap.NewWithStringComparator(),
		out:      make(map[int][]int),
	}
}

func nameIndexKey(nt NodeType, name, file string, h int) string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%010d", nt, name, file, h)
}

func fileIndexKey(nt NodeType, file string, h int) string {
	return fmt.Sprintf("%s\x1f%s\x1f%010d", nt, file, h)
}

func (g *IndexedGraph) index(h int) {
	n := g.arena[h].node
	g.byName.Put(nameIndexKey(n.Type, n.Data.Name, n.Data.File, h), h)
	g.byFile.Put(fileIndexKey(n.Type, n.Data.File, h), h)
}

func (g *IndexedGraph) unindex(h int) {
	n := g.arena[h].node
	g.byName.Remove(nameIndexKey(n.Type, n.Data.Name, n.Data.File, h))
	g.byFile.Remove(fileIndexKey(n.Type, n.Data.File, h))
}

// scan visits the handles stored under prefix in ascending handle order.
func scan(m *treemap.Map, prefix string) []int {
	var handles []int
	k, v := m.Ceiling(prefix)
	for k != nil {
		key := k.(string)
		if !strings.HasPrefix(key, prefix) {
			break
		}
		handles = append(handles, v.(int))
		k, v = m.Ceiling(key + "\x00")
	}
	sort.Ints(handles)
	return handles
}

func (g *IndexedGraph) lookup(nt NodeType, name, file string) (int, bool) {
	hs := scan(g.byName, string(nt)+"\x1f"+name+"\x1f"+file+"\x1f")
	if len(hs) > 0 {
		return hs[0], true
	}
	return -1, false
}

func (g *IndexedGraph) data(handles []int) []NodeData {
	out := make([]NodeData, len(handles))
	for i, h := range handles {
		out[i] = g.arena[h].node.Data
	}
	return out
}

// resolve returns the handle an edge endpoint binds to. Among nodes sharing
// the endpoint's identity the one with the same payload wins; a phantom
// slot is created when no node matches.
func (g *IndexedGraph) resolve(n Node) int {
	if hs := scan(g.byName, string(n.Type)+"\x1f"+n.Data.Name+"\x1f"+n.Data.File+"\x1f"); len(hs) > 0 {
		return hs[bindIndex(g.data(hs), n.Data)]
	}
	key := n.Key()
	for _, h := range g.phantoms[key] {
		if samePayload(g.arena[h].node.Data, n.Data) {
			return h
		}
	}
	h := len(g.arena)
	g.arena = append(g.arena, slot{node: Node{Type: n.Type, Data: n.Data.Clone()}, phantom: true})
	g.phantoms[key] = append(g.phantoms[key], h)
	return h
}

func (g *IndexedGraph) Kind() Kind { return KindIndexed }

func (g *IndexedGraph) AddNode(nt NodeType, nd NodeData) {
	n := Node{Type: nt, Data: nd}
	key := n.Key()
	if ps := g.phantoms[key]; len(ps) > 0 {
		i := bindIndex(g.data(ps), nd)
		h := ps[i]
		g.phantoms[key] = append(ps[:i:i], ps[i+1:]...)
		if len(g.phantoms[key]) == 0 {
			delete(g.phantoms, key)
		}
		g.arena[h] = slot{node: n, live: true}
		g.live++
		g.index(h)
		return
	}
	h := len(g.arena)
	g.arena = append(g.arena, slot{node: n, live: true})
	g.live++
	g.index(h)
}

func (g *IndexedGraph) AddNodeWithParent(nt NodeType, nd NodeData, parentType NodeType, parentFile string) {
	if hs := scan(g.byFile, string(parentType)+"\x1f"+parentFile+"\x1f"); len(hs) > 0 {
		parent := g.arena[hs[0]].node
		g.AddEdge(ContainsEdge(parentType, parent.Data, nt, nd))
	}
	g.AddNode(nt, nd)
}

func (g *IndexedGraph) AddEdge(e Edge) {
	he := handleEdge{typ: e.Type, src: g.resolve(e.Source), dst: g.resolve(e.Target)}
	if e.Calls != nil {
		meta := *e.Calls
		he.calls = &meta
	}
	g.edges = append(g.edges, he)
	g.out[he.src] = append(g.out[he.src], len(g.edges)-1)
}

func (g *IndexedGraph) AddError(msg string) {
	g.errors = append(g.errors, msg)
}

func (g *IndexedGraph) Extend(other Graph) {
	for _, n := range other.Nodes() {
		g.AddNode(n.Type, n.Data.Clone())
	}
	for _, e := range other.Edges() {
		g.AddEdge(cloneEdge(e))
	}
	g.errors = append(g.errors, other.Errors()...)
}

func (g *IndexedGraph) Size() (int, int) {
	return g.live, len(g.edges)
}

func (g *IndexedGraph) Nodes() []Node {
	out := make([]Node, 0, g.live)
	for _, s := range g.arena {
		if s.live {
			out = append(out, s.node)
		}
	}
	return out
}

func (g *IndexedGraph) edge(he handleEdge) Edge {
	e := Edge{
		Type:   he.typ,
		Source: g.arena[he.src].node,
		Target: g.arena[he.dst].node,
	}
	if he.calls != nil {
		meta := *he.calls
		e.Calls = &meta
	}
	return e
}

func (g *IndexedGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, he := range g.edges {
		out = append(out, g.edge(he))
	}
	return out
}

func (g *IndexedGraph) Errors() []string {
	out := make([]string, len(g.errors))
	copy(out, g.errors)
	return out
}

func (g *IndexedGraph) collect(handles []int) []NodeData {
	if len(handles) == 0 {
		return nil
	}
	return g.data(handles)
}

func (g *IndexedGraph) FindNodesByType(nt NodeType) []NodeData {
	return g.collect(scan(g.byFile, string(nt)+"\x1f"))
}

func (g *IndexedGraph) FindNodesByName(nt NodeType, name string) []NodeData {
	return g.collect(scan(g.byName, string(nt)+"\x1f"+name+"\x1f"))
}

func (g *IndexedGraph) FindNodeInFile(nt NodeType, name, file string) (NodeData, bool) {
	if h, ok := g.lookup(nt, name, file); ok {
		return g.arena[h].node.Data, true
	}
	return NodeData{}, false
}

func (g *IndexedGraph) FindNodeAt(nt NodeType, file string, line int) (NodeData, bool) {
	for _, h := range scan(g.byFile, string(nt)+"\x1f"+file+"\x1f") {
		if nd := g.arena[h].node.Data; spanContains(nd, line) {
			return nd, true
		}
	}
	return NodeData{}, false
}

func (g *IndexedGraph) FindNodeStartingAt(nt NodeType, file string, line int) (NodeData, bool) {
	for _, h := range scan(g.byFile, string(nt)+"\x1f"+file+"\x1f") {
		if nd := g.arena[h].node.Data; nd.Start == line {
			return nd, true
		}
	}
	return NodeData{}, false
}

func (g *IndexedGraph) FindNodesByFileSuffix(nt NodeType, suffix string) []NodeData {
	var out []NodeData
	for _, h := range scan(g.byFile, string(nt)+"\x1f") {
		if nd := g.arena[h].node.Data; strings.HasSuffix(nd.File, suffix) {
			out = append(out, nd)
		}
	}
	return out
}

func (g *IndexedGraph) FindNodeByNameFileSuffix(nt NodeType, name, suffix string) (NodeData, bool) {
	for _, h := range scan(g.byName, string(nt)+"\x1f"+name+"\x1f") {
		if nd := g.arena[h].node.Data; strings.HasSuffix(nd.File, suffix) {
			return nd, true
		}
	}
	return NodeData{}, false
}

func (g *IndexedGraph) FindEndpoint(name, file, verb string) (NodeData, bool) {
	for _, h := range scan(g.byName, string(NodeEndpoint)+"\x1f"+name+"\x1f"+file+"\x1f") {
		if nd := g.arena[h].node.Data; nd.MetaValue(MetaVerb) == verb {
			return nd, true
		}
	}
	return NodeData{}, false
}

func (g *IndexedGraph) EdgesOfType(et EdgeType) []Edge {
	var out []Edge
	for _, he := range g.edges {
		if he.typ == et {
			out = append(out, g.edge(he))
		}
	}
	return out
}

func (g *IndexedGraph) OutgoingEdges(nt NodeType, name, file string, et EdgeType) []Edge {
	var handles []int
	handles = append(handles, scan(g.byName, string(nt)+"\x1f"+name+"\x1f"+file+"\x1f")...)
	handles = append(handles, g.phantoms[nodeKey(nt, name, file)]...)
	var idx []int
	for _, h := range handles {
		idx = append(idx, g.out[h]...)
	}
	sort.Ints(idx)
	var out []Edge
	for _, i := range idx {
		if g.edges[i].typ == et {
			out = append(out, g.edge(g.edges[i]))
		}
	}
	return out
}

func (g *IndexedGraph) RenameNode(nt NodeType, name, file, newName string) (bool, int) {
	return g.rename(nt, name, file, newName, firstRenamed)
}

func (g *IndexedGraph) RenameEndpoint(name, file, verb, newName string) (bool, int) {
	return g.rename(NodeEndpoint, name, file, newName, verbRenamed(verb))
}

func (g *IndexedGraph) rename(nt NodeType, name, file, newName string, pick func([]NodeData) int) (bool, int) {
	hs := scan(g.byName, string(nt)+"\x1f"+name+"\x1f"+file+"\x1f")
	if len(hs) == 0 {
		return false, 0
	}
	i := pick(g.data(hs))
	if i < 0 {
		return false, 0
	}
	h := hs[i]
	g.unindex(h)
	g.arena[h].node.Data.Name = newName
	g.index(h)
	updated := 0
	for _, he := range g.edges {
		if he.src == h {
			updated++
		}
		if he.dst == h {
			updated++
		}
	}
	return true, updated
}

func (g *IndexedGraph) Filter(files []string) Graph {
	allow := fileSet(files)
	out := NewIndexedGraph()
	for _, s := range g.arena {
		if s.live && (s.node.Type == NodeRepository || allow[s.node.Data.File]) {
			out.AddNode(s.node.Type, s.node.Data.Clone())
		}
	}
	for _, he := range g.edges {
		e := g.edge(he)
		if allow[e.Source.Data.File] || allow[e.Target.Data.File] {
			out.AddEdge(cloneEdge(e))
		}
	}
	out.errors = append(out.errors, g.errors...)
	return out
}

func (g *IndexedGraph) PrefixPaths(root string) {
	g.byName.Clear()
	g.byFile.Clear()
	phantoms := make(map[string][]int, len(g.phantoms))
	for h := range g.arena {
		s := &g.arena[h]
		s.node.Data.File = prefixPath(root, s.node.Data.File)
		switch {
		case s.live:
			g.index(h)
		case s.phantom:
			phantoms[s.node.Key()] = append(phantoms[s.node.Key()], h)
		}
	}
	g.phantoms = phantoms
}

func (g *IndexedGraph) Prune(rule PruneRule) int {
	var live []Node
	for _, s := range g.arena {
		if s.live {
			live = append(live, s.node)
		}
	}
	keep := parentsWithChildren(live, rule)
	removed := make(map[int]bool)
	for h := range g.arena {
		s := &g.arena[h]
		if s.live && s.node.Type == rule.Parent && !keep[s.node.Data.Name] {
			g.unindex(h)
			s.live = false
			g.live--
			removed[h] = true
		}
	}
	if len(removed) == 0 {
		return 0
	}
	edges := g.edges[:0]
	for _, he := range g.edges {
		if removed[he.src] || removed[he.dst] {
			continue
		}
		edges = append(edges, he)
	}
	g.edges = edges
	g.out = make(map[int][]int)
	for i, he := range g.edges {
		g.out[he.src] = append(g.out[he.src], i)
	}
	return len(removed)
}
