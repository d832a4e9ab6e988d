// Package watcher watches a source tree and reports batches of changes.
// Every batch triggers a full rebuild; the watcher itself keeps no graph
// state.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	Create EventOp = iota
	Write
	Remove
	Rename
)

// String returns the string representation of EventOp.
func (op EventOp) String() string {
	switch op {
	case Create:
		return "Create"
	case Write:
		return "Write"
	case Remove:
		return "Remove"
	case Rename:
		return "Rename"
	default:
		return "Unknown"
	}
}

// Event represents a file system change event.
type Event struct {
	Path string
	Op   EventOp
	Time time.Time
}

// DefaultDebounce is the quiet period after the last change before a batch
// is delivered.
const DefaultDebounce = 500 * time.Millisecond

// Config holds configuration for the file system watcher.
type Config struct {
	Root     string
	Include  []string
	Exclude  []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher watches a tree for changes and emits debounced batches.
type Watcher struct {
	cfg     Config
	log     *slog.Logger
	matcher *Matcher
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	closed  bool
}

// New creates a watcher for cfg.Root.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	matcher, err := NewMatcher(cfg.Root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	if err := matcher.LoadPatterns(); err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:     cfg,
		log:     cfg.Logger,
		matcher: matcher,
	}, nil
}

// Start begins watching and returns a channel of change batches. The
// channel closes when ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) (<-chan []Event, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	if err := w.addRecursive(w.cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan []Event, 1)
	go w.eventLoop(ctx, fsw, out)
	return out, nil
}

// Run calls onChange for every batch until ctx is cancelled. Errors from
// onChange are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, batch []Event) error) error {
	batches, err := w.Start(ctx)
	if err != nil {
		return err
	}
	defer w.Close()
	for batch := range batches {
		if err := onChange(ctx, batch); err != nil {
			w.log.Warn("rebuild failed", "changes", len(batch), "error", err)
		}
	}
	return ctx.Err()
}

// Close shuts down the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if !d.IsDir() {
			return nil
		}
		if w.matcher.Ignored(w.matcher.Rel(p), true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// relevant reports whether a change to p can affect the graph.
func (w *Watcher) relevant(p string, op EventOp) bool {
	rel := w.matcher.Rel(p)
	if filepath.Base(p) == ".gitignore" {
		return true
	}
	if op == Remove || op == Rename {
		return !w.matcher.Ignored(rel, false)
	}
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return !w.matcher.Ignored(rel, true)
	}
	return !w.matcher.Ignored(rel, false) && w.matcher.Included(rel)
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- []Event) {
	defer close(out)

	pending := make(map[string]Event)
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return
			}
			op, valid := convertOp(fsEvent.Op)
			if !valid || !w.relevant(fsEvent.Name, op) {
				continue
			}
			if op == Create {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fsEvent.Name)
				}
			}
			if filepath.Base(fsEvent.Name) == ".gitignore" {
				if err := w.matcher.LoadPatterns(); err != nil {
					w.log.Warn("reload ignore rules", "error", err)
				}
			}
			pending[fsEvent.Name] = Event{Path: fsEvent.Name, Op: op, Time: time.Now()}
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Event, 0, len(pending))
			for _, e := range pending {
				batch = append(batch, e)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]Event)
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func convertOp(op fsnotify.Op) (EventOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Create, true
	case op.Has(fsnotify.Write):
		return Write, true
	case op.Has(fsnotify.Remove):
		return Remove, true
	case op.Has(fsnotify.Rename):
		return Rename, true
	default:
		return 0, false
	}
}
