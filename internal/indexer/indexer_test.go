package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

var backends = []graph.Kind{graph.KindArray, graph.KindIndexed}

func forEachBackend(t *testing.T, fn func(t *testing.T, kind graph.Kind)) {
	t.Helper()
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			fn(t, kind)
		})
	}
}

func build(t *testing.T, kind graph.Kind, root string) *Result {
	t.Helper()
	res, err := New(nil, Options{Backend: kind, Workers: 4}).Build(context.Background(), root)
	require.NoError(t, err)
	return res
}

func nodesIn(g graph.Graph, nt graph.NodeType, suffix string) []graph.NodeData {
	var out []graph.NodeData
	for _, nd := range g.FindNodesByType(nt) {
		if strings.HasSuffix(nd.File, suffix) {
			out = append(out, nd)
		}
	}
	return out
}

func hasEdge(g graph.Graph, et graph.EdgeType, src, dst string) bool {
	for _, e := range g.EdgesOfType(et) {
		if e.Source.Data.Name == src && e.Target.Data.Name == dst {
			return true
		}
	}
	return false
}

func TestDiscover(t *testing.T) {
	files, err := Discover("testdata/react", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		".gitignore",
		"package.json",
		"src/App.tsx",
		"src/components/NewPerson.tsx",
		"src/components/People.tsx",
		"src/components/ui.tsx",
		"src/index.tsx",
		"src/setupProxy.js",
		"src/types.ts",
	}, files)
}

func TestDiscoverGlobs(t *testing.T) {
	files, err := Discover("testdata/ruby", []string{"**/*.rb"}, []string{"spec/**"})
	require.NoError(t, err)
	assert.Contains(t, files, "config/routes.rb")
	assert.Contains(t, files, "app/controllers/people_controller.rb")
	assert.NotContains(t, files, "Gemfile")
	assert.NotContains(t, files, "app/views/people/show_person_profile.erb")
	assert.NotContains(t, files, "spec/requests/people_spec.rb")
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), nil, nil)
	assert.Error(t, err)
}

func TestBuildNoFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# empty\n"), 0o644))

	_, err := New(nil, Options{}).Build(context.Background(), root)
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestBuildRailsApp(t *testing.T) {
	var sizes [][2]int
	forEachBackend(t, func(t *testing.T, kind graph.Kind) {
		res := build(t, kind, "testdata/ruby")
		g := res.Graph

		assert.Equal(t, []parser.Language{parser.LangRuby}, res.Languages)
		require.Len(t, g.FindNodesByType(graph.NodeLanguage), 1)
		assert.Equal(t, "ruby", g.FindNodesByType(graph.NodeLanguage)[0].Name)
		assert.Len(t, g.FindNodesByName(graph.NodeFile, "Gemfile"), 1)

		endpoints := make(map[string]bool)
		for _, ep := range g.FindNodesByType(graph.NodeEndpoint) {
			endpoints[ep.MetaValue(graph.MetaVerb)+" "+ep.Name] = true
		}
		assert.Equal(t, map[string]bool{
			"GET person/:id":                      true,
			"POST person":                         true,
			"DELETE /people/:id":                  true,
			"GET /people/articles":                true,
			"POST /people/:id/articles":           true,
			"POST /countries/:country_id/process": true,
			"GET profile/:id":                     true,
		}, endpoints)
		assert.Equal(t, 7, graph.CountEdges(g, graph.EdgeHandler))
		assert.True(t, hasEdge(g, graph.EdgeHandler, "/countries/:country_id/process", "process_country"))

		pages := nodesIn(g, graph.NodePage, "views/people/show_person_profile.erb")
		require.Len(t, pages, 1)
		assert.True(t, hasEdge(g, graph.EdgeRenders, "show_person_profile.erb", "show_person_profile"))

		assert.True(t, hasEdge(g, graph.EdgeCalls, "People API", "person/:id"))
		assert.True(t, hasEdge(g, graph.EdgeParentOf, "ApplicationController", "PeopleController"))
		assert.True(t, hasEdge(g, graph.EdgeCalls, "process_country", "by_code"))
		assert.True(t, graph.DirectUsage(g, "perform", "Country"))
		assert.NotEmpty(t, g.FindNodesByType(graph.NodeLibrary))

		handlers := graph.FindResources(g, "/people/:id", "DELETE")
		require.Len(t, handlers, 1)
		fns := graph.FindHandlers(g, handlers[0].Data)
		require.Len(t, fns, 1)
		assert.Equal(t, "destroy", fns[0].Name)

		nodes, edges := g.Size()
		sizes = append(sizes, [2]int{nodes, edges})
	})
	require.Len(t, sizes, 2)
	assert.Equal(t, sizes[0], sizes[1], "backends disagree")
	nodes, edges := sizes[0][0], sizes[0][1]
	assert.True(t, nodes >= 58 && nodes <= 61, "node count %d outside 58-61", nodes)
	assert.True(t, edges >= 88 && edges <= 99, "edge count %d outside 88-99", edges)
}

func TestBuildReactApp(t *testing.T) {
	var sizes [][2]int
	forEachBackend(t, func(t *testing.T, kind graph.Kind) {
		res := build(t, kind, "testdata/react")
		g := res.Graph

		langs := g.FindNodesByType(graph.NodeLanguage)
		require.Len(t, langs, 1)
		assert.Equal(t, "react", langs[0].Name)
		assert.Equal(t, "testdata/react/", langs[0].File)

		assert.Len(t, g.FindNodesByName(graph.NodeFile, "package.json"), 1)
		assert.Len(t, g.FindNodesByType(graph.NodeImport), 4)
		assert.Len(t, g.FindNodesByType(graph.NodeFunction), 11)
		assert.Len(t, nodesIn(g, graph.NodeFunction, "src/App.tsx"), 1)
		assert.Equal(t, "App", nodesIn(g, graph.NodeFunction, "src/App.tsx")[0].Name)

		var buttons int
		for _, fn := range nodesIn(g, graph.NodeFunction, "src/components/NewPerson.tsx") {
			if fn.Name == "SubmitButton" {
				buttons++
			}
		}
		assert.Equal(t, 1, buttons)

		assert.Len(t, g.FindNodesByType(graph.NodeRequest), 3)
		assert.Equal(t, 14, graph.CountEdges(g, graph.EdgeCalls))
		assert.True(t, hasEdge(g, graph.EdgeCalls, "NewPerson", "/person"))
		assert.True(t, hasEdge(g, graph.EdgeCalls, "App", "Panel"))
		assert.True(t, hasEdge(g, graph.EdgeUses, "SubmitButton", "button"))

		assert.Len(t, g.FindNodesByType(graph.NodePage), 2)
		var root []graph.NodeData
		for _, p := range nodesIn(g, graph.NodePage, "src/App.tsx") {
			if p.Name == "/" {
				root = append(root, p)
			}
		}
		require.Len(t, root, 1)
		assert.True(t, hasEdge(g, graph.EdgeRenders, "/", "People"))

		// Proxied routes name no local handler.
		assert.Len(t, nodesIn(g, graph.NodeEndpoint, "src/setupProxy.js"), 5)
		assert.Zero(t, graph.CountEdges(g, graph.EdgeHandler))

		for _, n := range g.Nodes() {
			assert.NotContains(t, n.Data.File, "node_modules")
		}

		nodes, edges := g.Size()
		assert.Equal(t, 50, nodes, "node count")
		assert.Equal(t, 57, edges, "edge count")
		sizes = append(sizes, [2]int{nodes, edges})
	})
	require.Len(t, sizes, 2)
	assert.Equal(t, sizes[0], sizes[1], "backends disagree")
}

func TestBuildDeterministic(t *testing.T) {
	first := build(t, graph.KindIndexed, "testdata/ruby").Graph
	second := build(t, graph.KindIndexed, "testdata/ruby").Graph

	a, err := graph.Marshal(first)
	require.NoError(t, err)
	b, err := graph.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestBuildProgress(t *testing.T) {
	var calls, last atomic.Int64
	idx := New(nil, Options{Workers: 2, OnProgress: func(done, total int) {
		calls.Add(1)
		if done == total {
			last.Store(int64(total))
		}
	}})
	res, err := idx.Build(context.Background(), "testdata/ruby")
	require.NoError(t, err)
	assert.Equal(t, int64(res.Files), calls.Load())
	assert.Equal(t, int64(res.Files), last.Load())
}

func TestBuildRevisions(t *testing.T) {
	idx := New(nil, Options{Backend: graph.KindIndexed})
	g, err := idx.BuildRevisions(context.Background(), []Revision{
		{Name: "backend", Dir: "testdata/ruby"},
		{Name: "frontend", Dir: "testdata/react"},
	})
	require.NoError(t, err)

	langs := make(map[string]string)
	for _, l := range g.FindNodesByType(graph.NodeLanguage) {
		langs[l.Name] = l.File
	}
	assert.Equal(t, "backend/testdata/ruby/", langs["ruby"])
	assert.Equal(t, "frontend/testdata/react/", langs["react"])

	for _, f := range g.FindNodesByType(graph.NodeFile) {
		assert.True(t, strings.HasPrefix(f.File, "backend/") || strings.HasPrefix(f.File, "frontend/"), f.File)
	}
}

func TestBuildRevisionsFailure(t *testing.T) {
	idx := New(nil, Options{})
	_, err := idx.BuildRevisions(context.Background(), []Revision{
		{Name: "ok", Dir: "testdata/ruby"},
		{Name: "empty", Dir: t.TempDir()},
	})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestWatchStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds int
	err := New(nil, Options{}).Watch(ctx, root, 20*time.Millisecond, func(res *Result) error {
		builds++
		assert.Equal(t, []parser.Language{parser.LangGo}, res.Languages)
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
}
