// Package indexer orchestrates a build: it discovers the files of a source
// tree, extracts them in parallel with the stack of every detected
// language, links each language's results into a graph and merges the
// graphs.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/linker"
	"github.com/imyousuf/codegraph/internal/parser"
	"github.com/imyousuf/codegraph/internal/parser/golang"
	"github.com/imyousuf/codegraph/internal/parser/python"
	"github.com/imyousuf/codegraph/internal/parser/ruby"
	"github.com/imyousuf/codegraph/internal/parser/swift"
	"github.com/imyousuf/codegraph/internal/parser/typescript"
)

// ErrNoFiles is returned when a tree holds no file any selected stack claims.
var ErrNoFiles = errors.New("no source files found")

// DefaultRegistry returns a registry holding every supported stack.
func DefaultRegistry() *parser.Registry {
	return parser.NewRegistry(
		golang.New(),
		python.New(),
		ruby.New(),
		typescript.New(),
		typescript.NewReact(),
		swift.New(),
	)
}

// Options configures an Indexer.
type Options struct {
	Backend graph.Kind
	// Workers bounds parallel extraction. Zero means one per CPU.
	Workers int
	Include []string
	Exclude []string
	// Languages overrides language detection when set.
	Languages []parser.Language
	Prune     []graph.PruneRule
	CacheSize int
	Logger    *slog.Logger
	// OnProgress is called after every extracted file, from worker
	// goroutines.
	OnProgress func(done, total int)
}

// Result is one finished build.
type Result struct {
	Graph     graph.Graph
	Root      string
	Files     int
	Languages []parser.Language
	Duration  time.Duration
}

// Revision names a checked-out tree to build.
type Revision struct {
	Name string
	Dir  string
}

// Indexer builds graphs from source trees. It is safe for concurrent use;
// each build keeps its own state.
type Indexer struct {
	registry *parser.Registry
	opts     Options
	log      *slog.Logger
}

// New creates an Indexer. A nil registry means DefaultRegistry.
func New(registry *parser.Registry, opts Options) *Indexer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Indexer{registry: registry, opts: opts, log: opts.Logger}
}

// Build discovers, extracts and links the tree at root.
func (idx *Indexer) Build(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	files, err := Discover(root, idx.opts.Include, idx.opts.Exclude)
	if err != nil {
		return nil, err
	}

	langs := idx.opts.Languages
	if len(langs) == 0 {
		langs = parser.DetectLanguages(files, func(rel string) ([]byte, error) {
			return os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		})
	}

	merged, err := graph.New(idx.opts.Backend, 0)
	if err != nil {
		return nil, err
	}
	res := &Result{Graph: merged, Root: root}
	for _, lang := range langs {
		stack, err := idx.registry.Get(lang)
		if err != nil {
			idx.log.Warn("skipping language", "language", lang, "error", err)
			continue
		}
		var claimed []string
		for _, f := range files {
			if parser.Claims(stack, f) {
				claimed = append(claimed, f)
			}
		}
		if len(claimed) == 0 {
			continue
		}
		g, err := idx.buildLanguage(ctx, stack, root, claimed)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", lang, err)
		}
		merged.Extend(g)
		res.Files += len(claimed)
		res.Languages = append(res.Languages, lang)
	}
	if res.Files == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, root)
	}

	res.Duration = time.Since(start)
	nodes, edges := merged.Size()
	idx.log.Info("build complete", "root", root, "files", res.Files, "nodes", nodes, "edges", edges,
		"errors", len(merged.Errors()), "duration", res.Duration)
	return res, nil
}

// buildLanguage extracts files with stack and links the results.
func (idx *Indexer) buildLanguage(ctx context.Context, stack parser.Stack, root string, files []string) (graph.Graph, error) {
	results, err := idx.extract(ctx, stack, root, files)
	if err != nil {
		return nil, err
	}
	l, err := linker.New(stack, linker.Options{
		Root:      root,
		Backend:   idx.opts.Backend,
		Prune:     idx.opts.Prune,
		CacheSize: idx.opts.CacheSize,
		Logger:    idx.log,
	})
	if err != nil {
		return nil, err
	}
	return l.Link(ctx, results)
}

// extract runs the stack over every file in parallel. Results keep the
// order of files. A file that cannot be read or parsed yields a result
// carrying the error so linking records it and moves on.
func (idx *Indexer) extract(ctx context.Context, stack parser.Stack, root string, files []string) ([]*parser.FileResult, error) {
	results := make([]*parser.FileResult, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := filepath.ToSlash(filepath.Join(root, filepath.FromSlash(rel)))
			results[i] = extractFile(gctx, stack, p)
			if idx.opts.OnProgress != nil {
				idx.opts.OnProgress(int(done.Add(1)), len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func extractFile(ctx context.Context, stack parser.Stack, p string) *parser.FileResult {
	content, err := os.ReadFile(filepath.FromSlash(p))
	if err != nil {
		return &parser.FileResult{
			Path:     p,
			Language: stack.Language(),
			Errors:   []string{fmt.Sprintf("read %s: %v", p, err)},
		}
	}
	res, err := parser.Extract(ctx, stack, parser.SourceFile{Path: p, Content: content})
	if err != nil {
		if res == nil {
			res = &parser.FileResult{Path: p, Language: stack.Language()}
		}
		res.Errors = append(res.Errors, err.Error())
	}
	return res
}

func (idx *Indexer) workers() int {
	if idx.opts.Workers > 0 {
		return idx.opts.Workers
	}
	return defaultWorkers()
}

// BuildRevisions builds every revision concurrently and merges the graphs.
// File paths of each revision are prefixed with its name so the revisions
// stay apart in the merged graph.
func (idx *Indexer) BuildRevisions(ctx context.Context, revs []Revision) (graph.Graph, error) {
	graphs := make([]graph.Graph, len(revs))
	g, gctx := errgroup.WithContext(ctx)
	for i, rev := range revs {
		g.Go(func() error {
			res, err := idx.Build(gctx, rev.Dir)
			if err != nil {
				return fmt.Errorf("revision %s: %w", rev.Name, err)
			}
			graphs[i] = res.Graph
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := graph.New(idx.opts.Backend, 0)
	if err != nil {
		return nil, err
	}
	for i, rg := range graphs {
		if len(revs) > 1 && revs[i].Name != "" {
			rg.PrefixPaths(revs[i].Name)
		}
		merged.Extend(rg)
	}
	return merged, nil
}
