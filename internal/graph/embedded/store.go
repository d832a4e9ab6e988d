// Package embedded persists built graphs as named snapshots in BadgerDB.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/imyousuf/codegraph/internal/graph"
)

// ErrBuildNotFound is returned when no snapshot exists under a name.
var ErrBuildNotFound = errors.New("build not found")

// ErrInvalidName is returned for empty snapshot names or names containing ':'.
var ErrInvalidName = errors.New("invalid build name")

// Key prefixes for the BadgerDB key scheme. Every build owns the keys
// under <prefix><name>:, plus its header at b:<name>.
const (
	prefixBuild   = "b:"
	prefixNode    = "n:"
	prefixEdge    = "e:"
	prefixError   = "err:"
	prefixIdxType = "idx:type:"
)

// BuildInfo is the header stored with every snapshot.
type BuildInfo struct {
	Name    string     `json:"name"`
	ID      string     `json:"id"`
	Created time.Time  `json:"created"`
	Backend graph.Kind `json:"backend"`
	Nodes   int        `json:"nodes"`
	Edges   int        `json:"edges"`
	Errors  int        `json:"errors"`
}

// Store holds graph snapshots keyed by build name.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts.Logger = nil // suppress badger logs
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func validName(name string) error {
	if name == "" || strings.Contains(name, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func buildKey(name string) []byte { return []byte(prefixBuild + name) }

func seqKey(prefix, name string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefix, name, seq))
}

func indexTypeKey(name string, nt graph.NodeType, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%010d", prefixIdxType, name, nt, seq))
}

// SaveGraph stores g under name, replacing any previous snapshot of that
// name. Nodes, edges and errors keep their order.
func (s *Store) SaveGraph(ctx context.Context, name string, g graph.Graph) (*BuildInfo, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := s.deleteBuildKeys(name); err != nil {
		return nil, err
	}

	nodes, edges := g.Nodes(), g.Edges()
	errs := g.Errors()
	info := &BuildInfo{
		Name:    name,
		ID:      uuid.NewString(),
		Created: time.Now().UTC(),
		Backend: g.Kind(),
		Nodes:   len(nodes),
		Edges:   len(edges),
		Errors:  len(errs),
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, n := range nodes {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		data, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal node: %w", err)
		}
		if err := wb.Set(seqKey(prefixNode, name, i), data); err != nil {
			return nil, err
		}
		if err := wb.Set(indexTypeKey(name, n.Type, i), nil); err != nil {
			return nil, err
		}
	}
	for i, e := range edges {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal edge: %w", err)
		}
		if err := wb.Set(seqKey(prefixEdge, name, i), data); err != nil {
			return nil, err
		}
	}
	for i, msg := range errs {
		if err := wb.Set(seqKey(prefixError, name, i), []byte(msg)); err != nil {
			return nil, err
		}
	}
	header, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal build header: %w", err)
	}
	if err := wb.Set(buildKey(name), header); err != nil {
		return nil, err
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("save build %s: %w", name, err)
	}
	return info, nil
}

// Build returns the header of the snapshot stored under name.
func (s *Store) Build(_ context.Context, name string) (*BuildInfo, error) {
	var info *BuildInfo
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		info, err = getBuildInTxn(txn, name)
		return err
	})
	return info, err
}

func getBuildInTxn(txn *badger.Txn, name string) (*BuildInfo, error) {
	item, err := txn.Get(buildKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get build %s: %w", name, err)
	}
	var info BuildInfo
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &info)
	}); err != nil {
		return nil, fmt.Errorf("decode build %s: %w", name, err)
	}
	return &info, nil
}

// LoadGraph rebuilds the snapshot stored under name into a graph of the
// given backend.
func (s *Store) LoadGraph(ctx context.Context, name string, kind graph.Kind) (graph.Graph, *BuildInfo, error) {
	var (
		g    graph.Graph
		info *BuildInfo
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if info, err = getBuildInTxn(txn, name); err != nil {
			return err
		}
		if g, err = graph.New(kind, info.Nodes); err != nil {
			return err
		}
		if err := scanPrefix(ctx, txn, seqPrefix(prefixNode, name), func(_ []byte, val []byte) error {
			var n graph.Node
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			g.AddNode(n.Type, n.Data)
			return nil
		}); err != nil {
			return err
		}
		if err := scanPrefix(ctx, txn, seqPrefix(prefixEdge, name), func(_ []byte, val []byte) error {
			var e graph.Edge
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode edge: %w", err)
			}
			g.AddEdge(e)
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(ctx, txn, seqPrefix(prefixError, name), func(_ []byte, val []byte) error {
			g.AddError(string(val))
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return g, info, nil
}

// NodesByType returns the nodes of type nt in the snapshot stored under
// name, using the type index instead of decoding every node.
func (s *Store) NodesByType(ctx context.Context, name string, nt graph.NodeType) ([]graph.NodeData, error) {
	var out []graph.NodeData
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getBuildInTxn(txn, name); err != nil {
			return err
		}
		prefix := []byte(fmt.Sprintf("%s%s:%s:", prefixIdxType, name, nt))
		return scanPrefix(ctx, txn, prefix, func(key []byte, _ []byte) error {
			seq := strings.TrimPrefix(string(key), string(prefix))
			item, err := txn.Get([]byte(prefixNode + name + ":" + seq))
			if err != nil {
				return fmt.Errorf("get node %s: %w", seq, err)
			}
			var n graph.Node
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return fmt.Errorf("decode node: %w", err)
			}
			out = append(out, n.Data)
			return nil
		})
	})
	return out, err
}

// ListBuilds returns the headers of every stored snapshot, ordered by name.
func (s *Store) ListBuilds(_ context.Context) ([]BuildInfo, error) {
	var builds []BuildInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBuild)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			var info BuildInfo
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				continue // skip corrupt headers
			}
			builds = append(builds, info)
		}
		return nil
	})
	return builds, err
}

// DeleteBuild removes the snapshot stored under name.
func (s *Store) DeleteBuild(ctx context.Context, name string) error {
	if _, err := s.Build(ctx, name); err != nil {
		return err
	}
	return s.deleteBuildKeys(name)
}

func seqPrefix(prefix, name string) []byte {
	return []byte(prefix + name + ":")
}

// deleteBuildKeys removes the header and every key owned by the build.
func (s *Store) deleteBuildKeys(name string) error {
	for _, prefix := range []string{prefixNode, prefixEdge, prefixError, prefixIdxType} {
		if err := s.deleteKeysByPrefix(seqPrefix(prefix, name)); err != nil {
			return fmt.Errorf("delete build %s prefix %s: %w", name, prefix, err)
		}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(buildKey(name))
	})
}

// deleteKeysByPrefix removes all keys with the given prefix.
func (s *Store) deleteKeysByPrefix(prefix []byte) error {
	// Collect keys first, then delete in batches.
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Delete in batches to avoid transaction size limits.
	const batchSize = 1000
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		batch := keys[i:end]
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range batch {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// scanPrefix calls fn with every key and value under prefix in key order.
func scanPrefix(ctx context.Context, txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}
