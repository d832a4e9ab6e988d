package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/imyousuf/codegraph/internal/config"
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/graph/embedded"
	"github.com/imyousuf/codegraph/internal/indexer"
)

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// storePath resolves the snapshot store: a project registered for the
// working directory wins over the default relative path.
func storePath(cfg *config.Config) string {
	if cfg.Store.Path != config.Default().Store.Path {
		return cfg.Store.Path
	}
	if cwd, err := os.Getwd(); err == nil {
		if entry, ok := config.LookupProject(cwd); ok && entry.StorePath != "" {
			return entry.StorePath
		}
	}
	return cfg.Store.Path
}

// openStore opens the snapshot store of cfg.
func openStore(cfg *config.Config) (*embedded.Store, error) {
	path := storePath(cfg)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	store, err := embedded.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	return store, nil
}

// resolveBuild picks the snapshot name: the given one, or the only stored
// snapshot when none is given.
func resolveBuild(ctx context.Context, store *embedded.Store, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	builds, err := store.ListBuilds(ctx)
	if err != nil {
		return "", err
	}
	switch len(builds) {
	case 0:
		return "", errors.New("no saved builds; run 'codegraph build --save <name>'")
	case 1:
		return builds[0].Name, nil
	default:
		return "", fmt.Errorf("%d saved builds; pick one with --build", len(builds))
	}
}

// indexerOptions maps the configuration onto indexer options.
func indexerOptions(cfg *config.Config) indexer.Options {
	return indexer.Options{
		Backend:   cfg.Kind(),
		Workers:   cfg.Workers,
		Include:   cfg.Include,
		Exclude:   cfg.Exclude,
		Languages: cfg.ParsedLanguages(),
		Prune:     cfg.Prune,
		CacheSize: cfg.Cache.Size,
	}
}

// newProgress returns an OnProgress callback drawing a bar on stderr. The
// bar is created on the first call, once the file count is known.
func newProgress(cmd *cobra.Command) func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil || bar.GetMax() != total {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Extracting files"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("files/s"),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}
}

// writeGraph writes g as a JSON document to path.
func writeGraph(g graph.Graph, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := graph.WriteJSON(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// finish prints the totals of g and writes or saves it as requested.
func finish(cmd *cobra.Command, cfg *config.Config, g graph.Graph, output, save string) error {
	out := cmd.OutOrStdout()
	nodes, edges := g.Size()
	fmt.Fprintf(out, "Final Graph => %d nodes and %d edges\n", nodes, edges)
	if n := len(g.Errors()); n > 0 {
		fmt.Fprintf(out, "  %d soft error(s); see 'codegraph status' or run with -v\n", n)
	}

	if output != "" {
		if err := writeGraph(g, output); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", output)
	}
	if save != "" {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		info, err := store.SaveGraph(cmd.Context(), save, g)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Fprintf(out, "Saved snapshot %s (%s)\n", info.Name, info.ID)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
