// Package linker turns per-file extraction results into one graph. It runs
// as a post-extraction phase, analyzing every file's records at once to
// create the edges that no single file can resolve on its own.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// DefaultCacheSize bounds the number of parsed function bodies kept while
// resolving data-model usage.
const DefaultCacheSize = 4096

// Options configures a Linker.
type Options struct {
	// Root is the repository directory the file paths are rooted under.
	Root string
	// Backend selects the graph implementation.
	Backend graph.Kind
	// Prune rules run after every other pass.
	Prune []graph.PruneRule
	// CacheSize bounds the usage-site cache. Zero means DefaultCacheSize.
	CacheSize int
	Logger    *slog.Logger
}

// Linker resolves cross-file relationships for one language stack. A
// Linker is single-use and not safe for concurrent use.
type Linker struct {
	stack parser.Stack
	opts  Options
	log   *slog.Logger
	g     graph.Graph
	usage *lru.Cache[string, map[string]bool]

	// external functions created for library calls, by identity key.
	external map[string]bool
	// files holds every extracted path, for import source resolution.
	files   []string
	sources map[string][]string
}

// New creates a Linker for stack.
func New(stack parser.Stack, opts Options) (*Linker, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, map[string]bool](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create usage cache: %w", err)
	}
	return &Linker{
		stack:    stack,
		opts:     opts,
		log:      opts.Logger.With("language", string(stack.Language())),
		usage:    cache,
		external: make(map[string]bool),
	}, nil
}

// Link builds the graph for results. Passes run in a fixed order; later
// passes rely on the nodes earlier ones added. Problems that affect a
// single entity are recorded in the graph's error list and linking
// continues.
func (l *Linker) Link(ctx context.Context, results []*parser.FileResult) (graph.Graph, error) {
	g, err := graph.New(l.opts.Backend, estimateNodes(results))
	if err != nil {
		return nil, err
	}
	l.g = g
	for _, res := range results {
		l.files = append(l.files, res.Path)
	}

	l.pass("scaffold", l.scaffold(results))
	l.pass("functions", l.addFunctions(results))
	l.pass("pages", l.addPages(results))
	l.pass("endpoints", l.addEndpoints(results))
	l.pass("endpoint groups", l.renameGroups(ctx, results))
	l.pass("inheritance", l.linkInheritance())
	l.pass("mixins", l.linkMixins())
	l.pass("instances", l.addInstances(results))
	l.pass("calls", l.linkCalls(results))
	l.pass("integration tests", l.linkIntegrationTests(results))
	l.pass("data model usage", l.linkDataModelUsage(ctx))
	for _, rule := range l.opts.Prune {
		l.pass("prune "+string(rule.Parent), l.g.Prune(rule))
	}

	nodes, edges := l.g.Size()
	l.log.Info("graph linked", "nodes", nodes, "edges", edges, "errors", len(l.g.Errors()))
	return l.g, nil
}

func (l *Linker) pass(name string, count int) {
	l.log.Debug("linked", "pass", name, "count", count)
}

// softError records a problem that leaves one entity less connected.
func (l *Linker) softError(msg string) {
	l.g.AddError(msg)
	l.log.Warn(msg)
}

func estimateNodes(results []*parser.FileResult) int {
	n := 2
	for _, res := range results {
		n += 1 + len(res.Libraries) + len(res.Classes) + len(res.DataModels) +
			len(res.Functions) + len(res.Tests) + len(res.Endpoints) + len(res.Instances) + len(res.Pages)
		if res.Import != nil {
			n++
		}
	}
	return n
}

// RootPath returns the root directory as it appears on Repository and
// Language nodes: slash separated with a trailing slash. The current
// directory maps to "".
func RootPath(root string) string {
	root = path.Clean(filepath.ToSlash(root))
	if root == "." {
		return ""
	}
	return strings.TrimSuffix(root, "/") + "/"
}

// scaffold adds the Repository, Language and File nodes and the records
// that hang directly off a file.
func (l *Linker) scaffold(results []*parser.FileResult) int {
	root := RootPath(l.opts.Root)
	repo := graph.NodeData{Name: path.Base(strings.TrimSuffix(root, "/")), File: root}
	lang := graph.NodeData{Name: string(l.stack.Language()), File: root}
	l.g.AddNode(graph.NodeRepository, repo)
	l.g.AddNode(graph.NodeLanguage, lang)
	l.g.AddEdge(graph.ContainsEdge(graph.NodeRepository, repo, graph.NodeLanguage, lang))

	added := 2
	for _, res := range results {
		file := graph.NodeData{Name: path.Base(res.Path), File: res.Path}
		file.SetMeta(graph.MetaLines, strconv.Itoa(res.Lines))
		l.g.AddNode(graph.NodeFile, file)
		l.g.AddEdge(graph.ContainsEdge(graph.NodeLanguage, lang, graph.NodeFile, file))
		added++

		for _, msg := range res.Errors {
			l.softError(msg)
		}
		for _, lib := range res.Libraries {
			l.g.AddNodeWithParent(graph.NodeLibrary, lib, graph.NodeFile, res.Path)
			added++
		}
		if res.Import != nil {
			l.g.AddNodeWithParent(graph.NodeImport, *res.Import, graph.NodeFile, res.Path)
			added++
		}
		for _, c := range res.Classes {
			l.g.AddNodeWithParent(graph.NodeClass, c, graph.NodeFile, res.Path)
			added++
		}
		for _, dm := range res.DataModels {
			l.g.AddNodeWithParent(graph.NodeDataModel, dm, graph.NodeFile, res.Path)
			added++
		}
		for _, t := range res.Tests {
			l.g.AddNodeWithParent(t.Type, t.Data, graph.NodeFile, res.Path)
			added++
		}
	}
	return added
}
