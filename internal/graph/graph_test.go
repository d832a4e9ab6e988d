package graph

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = []Kind{KindArray, KindIndexed}

func forEachBackend(t *testing.T, fn func(t *testing.T, kind Kind)) {
	t.Helper()
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			fn(t, kind)
		})
	}
}

var (
	peopleFile = NodeData{Name: "people.go", File: "acme/people.go"}
	ordersFile = NodeData{Name: "orders.go", File: "acme/orders.go"}
	person     = NodeData{Name: "Person", File: "acme/people.go", Start: 2, End: 6}
	getPerson  = NodeData{Name: "GetPerson", File: "acme/people.go", Start: 8, End: 14}
	loadRow    = NodeData{Name: "loadRow", File: "acme/orders.go", Start: 1, End: 5}
	getRoute   = NodeData{
		Name: "/people/{id}", File: "acme/routes.go", Start: 3, End: 3,
		Meta: map[string]string{MetaVerb: "GET", MetaHandler: "GetPerson"},
	}
)

// sampleGraph builds 7 nodes and 6 edges.
func sampleGraph(t *testing.T, kind Kind) Graph {
	t.Helper()
	g, err := New(kind, 8)
	require.NoError(t, err)

	g.AddNode(NodeRepository, NodeData{Name: "acme", File: "acme/"})
	g.AddNode(NodeFile, peopleFile)
	g.AddNode(NodeFile, ordersFile)
	g.AddNodeWithParent(NodeDataModel, person, NodeFile, peopleFile.File)
	g.AddNodeWithParent(NodeFunction, getPerson, NodeFile, peopleFile.File)
	g.AddNodeWithParent(NodeFunction, loadRow, NodeFile, ordersFile.File)
	g.AddEdge(ContainsEdge(NodeFunction, getPerson, NodeDataModel, person))
	g.AddEdge(CallsEdge(NodeFunction, getPerson, NodeFunction, loadRow, CallsMeta{CallStart: 10, CallEnd: 10}))
	g.AddNode(NodeEndpoint, getRoute)
	g.AddEdge(NewEdge(EdgeHandler, NodeEndpoint, getRoute, NodeFunction, getPerson))
	g.AddError("parse acme/broken.go: unexpected token")
	return g
}

// multiset returns the identity keys of all nodes and edges of g, sorted.
func multiset(g Graph) []string {
	var keys []string
	for _, n := range g.Nodes() {
		keys = append(keys, "node:"+n.Key())
	}
	for _, e := range g.Edges() {
		keys = append(keys, "edge:"+e.Key())
	}
	sort.Strings(keys)
	return keys
}

func names(nds []NodeData) []string {
	var out []string
	for _, nd := range nds {
		out = append(out, nd.Name)
	}
	return out
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("sqlite", 0)
	assert.Error(t, err)

	kind, err := ParseKind("BTree")
	require.NoError(t, err)
	assert.Equal(t, KindIndexed, kind)
}

func TestSizeAndSummary(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		nodes, edges := g.Size()
		assert.Equal(t, 7, nodes)
		assert.Equal(t, 6, edges)

		s := Summary(g)
		assert.Equal(t, 2, s.NodesByType[NodeFunction])
		assert.Equal(t, 4, s.EdgesByType[EdgeContains])
		assert.Equal(t, 1, s.EdgesByType[EdgeCalls])
		assert.Equal(t, 1, s.ErrorCount)
	})
}

func TestBackendEquivalence(t *testing.T) {
	a := sampleGraph(t, KindArray)
	b := sampleGraph(t, KindIndexed)

	assert.Equal(t, multiset(a), multiset(b))
	assert.Equal(t, Summary(a), Summary(b))

	for _, nt := range NodeTypes {
		assert.Equal(t, names(a.FindNodesByType(nt)), names(b.FindNodesByType(nt)), nt)
	}
	for _, et := range EdgeTypes {
		assert.Equal(t, CountEdges(a, et), CountEdges(b, et), et)
	}
	assert.Equal(t, names(a.FindNodesByName(NodeFunction, "GetPerson")), names(b.FindNodesByName(NodeFunction, "GetPerson")))
	assert.Equal(t, names(a.FindNodesByFileSuffix(NodeFunction, "orders.go")), names(b.FindNodesByFileSuffix(NodeFunction, "orders.go")))
	assert.Equal(t, DirectUsage(a, "GetPerson", "Person"), DirectUsage(b, "GetPerson", "Person"))
	assert.Equal(t, IndirectUsage(a, "GetPerson", "Order"), IndirectUsage(b, "GetPerson", "Order"))
	assert.Equal(t, len(FindResources(a, "/people/1", "get")), len(FindResources(b, "/people/1", "get")))
}

// duplicateGraph holds nodes that share (type, name, file): two verbs of
// one resource route and two methods named Get in one file.
func duplicateGraph(t *testing.T, kind Kind) Graph {
	t.Helper()
	g, err := New(kind, 0)
	require.NoError(t, err)

	route := func(verb, handler string) NodeData {
		return NodeData{
			Name: "/people/:id", File: "config/routes.rb", Start: 2, End: 2,
			Meta: map[string]string{MetaVerb: verb, MetaHandler: "people#" + handler},
		}
	}
	show := NodeData{Name: "show", File: "app/controllers/people_controller.rb", Start: 2, End: 4}
	destroy := NodeData{Name: "destroy", File: "app/controllers/people_controller.rb", Start: 6, End: 9}
	for _, fn := range []NodeData{show, destroy} {
		g.AddNode(NodeFunction, fn)
	}
	get, del := route("GET", "show"), route("DELETE", "destroy")
	g.AddNode(NodeEndpoint, get)
	g.AddNode(NodeEndpoint, del)
	g.AddEdge(NewEdge(EdgeHandler, NodeEndpoint, get, NodeFunction, show))
	g.AddEdge(NewEdge(EdgeHandler, NodeEndpoint, del, NodeFunction, destroy))

	typeA := NodeData{Name: "A", File: "store/get.go", Start: 3, End: 3}
	typeB := NodeData{Name: "B", File: "store/get.go", Start: 8, End: 8}
	getA := NodeData{Name: "Get", File: "store/get.go", Start: 4, End: 6, Meta: map[string]string{MetaOperand: "A"}}
	getB := NodeData{Name: "Get", File: "store/get.go", Start: 10, End: 12, Meta: map[string]string{MetaOperand: "B"}}
	for _, n := range []struct {
		nt NodeType
		nd NodeData
	}{{NodeClass, typeA}, {NodeClass, typeB}, {NodeFunction, getA}, {NodeFunction, getB}} {
		g.AddNode(n.nt, n.nd)
	}
	g.AddEdge(NewEdge(EdgeOperand, NodeClass, typeA, NodeFunction, getA))
	g.AddEdge(NewEdge(EdgeOperand, NodeClass, typeB, NodeFunction, getB))
	return g
}

// edgePayloads renders each edge with the payload fields that tell
// same-identity nodes apart, sorted.
func edgePayloads(g Graph) []string {
	var out []string
	for _, e := range g.Edges() {
		out = append(out, fmt.Sprintf("%s %s %s@%d -> %s@%d",
			e.Type, e.Source.Data.MetaValue(MetaVerb), e.Source.Data.Name, e.Source.Data.Start,
			e.Target.Data.Name, e.Target.Data.Start))
	}
	sort.Strings(out)
	return out
}

func TestBackendEquivalenceDuplicateIdentities(t *testing.T) {
	a := duplicateGraph(t, KindArray)
	b := duplicateGraph(t, KindIndexed)

	want := []string{
		"Handler DELETE /people/:id@2 -> destroy@6",
		"Handler GET /people/:id@2 -> show@2",
		"Operand  A@3 -> Get@4",
		"Operand  B@8 -> Get@10",
	}
	assert.Equal(t, want, edgePayloads(a))
	assert.Equal(t, want, edgePayloads(b))

	handlers := func(g Graph, verb string) []string {
		ep, ok := g.FindEndpoint("/people/:id", "config/routes.rb", verb)
		require.True(t, ok)
		return names(FindHandlers(g, ep))
	}
	for _, g := range []Graph{a, b} {
		assert.Equal(t, []string{"show"}, handlers(g, "GET"), g.Kind())
		assert.Equal(t, []string{"destroy"}, handlers(g, "DELETE"), g.Kind())
	}

	data, err := Marshal(a)
	require.NoError(t, err)
	round, err := Unmarshal(data, KindIndexed)
	require.NoError(t, err)
	assert.Equal(t, want, edgePayloads(round))
}

func TestRenameEndpointKeepsOtherVerbs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := duplicateGraph(t, kind)
		ok, updated := g.RenameEndpoint("/people/:id", "config/routes.rb", "DELETE", "/admin/people/:id")
		require.True(t, ok)
		assert.Equal(t, 1, updated)

		_, ok = g.FindEndpoint("/people/:id", "config/routes.rb", "GET")
		assert.True(t, ok)
		_, ok = g.FindEndpoint("/people/:id", "config/routes.rb", "DELETE")
		assert.False(t, ok)
		_, ok = g.FindEndpoint("/admin/people/:id", "config/routes.rb", "DELETE")
		assert.True(t, ok)
		assert.Contains(t, edgePayloads(g), "Handler DELETE /admin/people/:id@2 -> destroy@6")
		assert.Contains(t, edgePayloads(g), "Handler GET /people/:id@2 -> show@2")

		ok, _ = g.RenameEndpoint("/people/:id", "config/routes.rb", "PATCH", "/x")
		assert.False(t, ok)
	})
}

func TestLookups(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)

		nd, ok := g.FindNodeInFile(NodeFunction, "GetPerson", "acme/people.go")
		require.True(t, ok)
		assert.Equal(t, 8, nd.Start)

		_, ok = g.FindNodeInFile(NodeFunction, "GetPerson", "acme/orders.go")
		assert.False(t, ok)

		nd, ok = g.FindNodeAt(NodeFunction, "acme/people.go", 9)
		require.True(t, ok)
		assert.Equal(t, "GetPerson", nd.Name)

		_, ok = g.FindNodeStartingAt(NodeFunction, "acme/people.go", 9)
		assert.False(t, ok)
		nd, ok = g.FindNodeStartingAt(NodeFunction, "acme/people.go", 8)
		require.True(t, ok)
		assert.Equal(t, "GetPerson", nd.Name)

		assert.Equal(t, []string{"loadRow"}, names(g.FindNodesByFileSuffix(NodeFunction, "orders.go")))

		nd, ok = g.FindNodeByNameFileSuffix(NodeFunction, "loadRow", "/orders.go")
		require.True(t, ok)
		assert.Equal(t, "acme/orders.go", nd.File)

		_, ok = g.FindEndpoint("/people/{id}", "acme/routes.go", "GET")
		assert.True(t, ok)
		_, ok = g.FindEndpoint("/people/{id}", "acme/routes.go", "POST")
		assert.False(t, ok)

		out := g.OutgoingEdges(NodeFunction, "GetPerson", "acme/people.go", EdgeCalls)
		require.Len(t, out, 1)
		assert.Equal(t, "loadRow", out[0].Target.Data.Name)
		require.NotNil(t, out[0].Calls)
		assert.Equal(t, 10, out[0].Calls.CallStart)
	})
}

func TestEdgesOfTypeIgnoresCallSite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		g.AddEdge(NewEdge(EdgeCalls, NodeFunction, loadRow, NodeFunction, getPerson))
		g.AddEdge(CallsEdge(NodeFunction, loadRow, NodeFunction, loadRow, CallsMeta{CallStart: 2, CallEnd: 3, Operand: "db"}))
		assert.Equal(t, 3, CountEdges(g, EdgeCalls))
	})
}

func TestFilter(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		f := g.Filter([]string{"acme/people.go"})
		assert.Equal(t, kind, f.Kind())

		nodes, edges := f.Size()
		assert.Equal(t, 4, nodes)
		assert.Equal(t, 5, edges)
		assert.Len(t, f.FindNodesByType(NodeRepository), 1)
		for _, n := range f.Nodes() {
			if n.Type != NodeRepository {
				assert.Equal(t, "acme/people.go", n.Data.File)
			}
		}
		for _, e := range f.Edges() {
			assert.True(t, e.Source.Data.File == "acme/people.go" || e.Target.Data.File == "acme/people.go")
		}

		// the source graph is untouched
		nodes, _ = g.Size()
		assert.Equal(t, 7, nodes)
	})
}

func TestPrefixPaths(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		g.PrefixPaths("repos/main")

		repo := g.FindNodesByType(NodeRepository)
		require.Len(t, repo, 1)
		assert.Equal(t, "repos/main/acme/", repo[0].File)

		_, ok := g.FindNodeInFile(NodeFunction, "GetPerson", "repos/main/acme/people.go")
		assert.True(t, ok)
		for _, e := range g.Edges() {
			assert.Contains(t, e.Source.Data.File, "repos/main/")
			assert.Contains(t, e.Target.Data.File, "repos/main/")
		}
		out := g.OutgoingEdges(NodeFunction, "GetPerson", "repos/main/acme/people.go", EdgeCalls)
		assert.Len(t, out, 1)
	})
}

func TestRenameNodeReconcilesEdges(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		ok, updated := g.RenameNode(NodeFunction, "GetPerson", "acme/people.go", "FetchPerson")
		require.True(t, ok)
		assert.Equal(t, 4, updated)

		assert.Empty(t, g.FindNodesByName(NodeFunction, "GetPerson"))
		for _, e := range g.Edges() {
			assert.NotEqual(t, "GetPerson", e.Source.Data.Name)
			assert.NotEqual(t, "GetPerson", e.Target.Data.Name)
		}
		handlers := FindHandlers(g, getRoute)
		require.Len(t, handlers, 1)
		assert.Equal(t, "FetchPerson", handlers[0].Name)
		assert.True(t, DirectUsage(g, "FetchPerson", "Person"))

		ok, updated = g.RenameNode(NodeFunction, "Missing", "acme/people.go", "X")
		assert.False(t, ok)
		assert.Zero(t, updated)
	})
}

func TestPrune(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g, err := New(kind, 0)
		require.NoError(t, err)
		used := NodeData{Name: "PeopleHandlers", File: "api/people.go"}
		empty := NodeData{Name: "OrderHandlers", File: "api/orders.go"}
		g.AddNode(NodeClass, used)
		g.AddNode(NodeClass, empty)
		member := NodeData{Name: "List", File: "api/people.go", Meta: map[string]string{MetaOperand: "PeopleHandlers"}}
		g.AddNode(NodeFunction, member)
		g.AddEdge(NewEdge(EdgeOperand, NodeClass, used, NodeFunction, member))
		g.AddEdge(NewEdge(EdgeParentOf, NodeClass, used, NodeClass, empty))

		removed := g.Prune(PruneRule{Parent: NodeClass, Child: NodeFunction, ChildMetaKey: MetaOperand})
		assert.Equal(t, 1, removed)

		nodes, edges := g.Size()
		assert.Equal(t, 2, nodes)
		assert.Equal(t, 1, edges)
		assert.Equal(t, []string{"PeopleHandlers"}, names(g.FindNodesByType(NodeClass)))
	})
}

func TestExtend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g := sampleGraph(t, kind)
		other := sampleGraph(t, kind)
		other.PrefixPaths("rev2")
		g.Extend(other)

		nodes, edges := g.Size()
		assert.Equal(t, 14, nodes)
		assert.Equal(t, 12, edges)
		assert.Len(t, g.Errors(), 2)
		assert.Len(t, g.FindNodesByName(NodeFunction, "GetPerson"), 2)
	})
}

func TestDeterministicBuild(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		assert.Equal(t, multiset(sampleGraph(t, kind)), multiset(sampleGraph(t, kind)))
	})
}

func TestEdgeBeforeNode(t *testing.T) {
	forEachBackend(t, func(t *testing.T, kind Kind) {
		g, err := New(kind, 0)
		require.NoError(t, err)
		g.AddNode(NodeFile, peopleFile)
		g.AddEdge(ContainsEdge(NodeFile, peopleFile, NodeFunction, getPerson))
		nodes, edges := g.Size()
		assert.Equal(t, 1, nodes)
		assert.Equal(t, 1, edges)

		g.AddNode(NodeFunction, getPerson)
		nodes, _ = g.Size()
		assert.Equal(t, 2, nodes)

		ok, updated := g.RenameNode(NodeFunction, "GetPerson", "acme/people.go", "Fetch")
		assert.True(t, ok)
		assert.Equal(t, 1, updated)
	})
}
