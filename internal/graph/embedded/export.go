package embedded

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/imyousuf/codegraph/internal/graph"
)

// Record kinds of the JSON-lines format.
const (
	recordBuild = "build"
	recordNode  = "node"
	recordEdge  = "edge"
	recordError = "error"
)

// exportRecord is the JSON-lines format for export/import.
type exportRecord struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Export writes the snapshot stored under name to w in JSON-lines format:
// the build header first, then nodes, edges and errors in stored order.
func (s *Store) Export(ctx context.Context, name string, w io.Writer) error {
	enc := json.NewEncoder(w)
	return s.db.View(func(txn *badger.Txn) error {
		info, err := getBuildInTxn(txn, name)
		if err != nil {
			return err
		}
		header, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal build header: %w", err)
		}
		if err := enc.Encode(exportRecord{Kind: recordBuild, Data: header}); err != nil {
			return fmt.Errorf("encode build: %w", err)
		}

		for _, kind := range []struct {
			record, prefix string
		}{
			{recordNode, prefixNode},
			{recordEdge, prefixEdge},
		} {
			if err := scanPrefix(ctx, txn, seqPrefix(kind.prefix, name), func(_ []byte, val []byte) error {
				data := make([]byte, len(val))
				copy(data, val)
				if err := enc.Encode(exportRecord{Kind: kind.record, Data: data}); err != nil {
					return fmt.Errorf("encode %s: %w", kind.record, err)
				}
				return nil
			}); err != nil {
				return err
			}
		}

		return scanPrefix(ctx, txn, seqPrefix(prefixError, name), func(_ []byte, val []byte) error {
			data, err := json.Marshal(string(val))
			if err != nil {
				return err
			}
			if err := enc.Encode(exportRecord{Kind: recordError, Data: data}); err != nil {
				return fmt.Errorf("encode error: %w", err)
			}
			return nil
		})
	})
}

// Import reads a JSON-lines export from r and stores it under name,
// replacing any snapshot of that name. The header of the export is
// informational only; the new snapshot gets a fresh id.
func (s *Store) Import(ctx context.Context, name string, r io.Reader) (*BuildInfo, error) {
	doc, kind, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromDocument(doc, kind)
	if err != nil {
		return nil, err
	}
	return s.SaveGraph(ctx, name, g)
}

// readRecords decodes a JSON-lines export into a graph document and the
// backend named in its header, if any.
func readRecords(r io.Reader) (*graph.Document, graph.Kind, error) {
	var (
		doc  graph.Document
		kind graph.Kind
	)
	scanner := bufio.NewScanner(r)
	// Increase buffer for potentially large lines.
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec exportRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, "", fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Kind {
		case recordBuild:
			var info BuildInfo
			if err := json.Unmarshal(rec.Data, &info); err != nil {
				return nil, "", fmt.Errorf("line %d: decode build: %w", line, err)
			}
			kind = info.Backend
		case recordNode:
			var n graph.Node
			if err := json.Unmarshal(rec.Data, &n); err != nil {
				return nil, "", fmt.Errorf("line %d: decode node: %w", line, err)
			}
			doc.Nodes = append(doc.Nodes, n)
		case recordEdge:
			var e graph.Edge
			if err := json.Unmarshal(rec.Data, &e); err != nil {
				return nil, "", fmt.Errorf("line %d: decode edge: %w", line, err)
			}
			doc.Edges = append(doc.Edges, e)
		case recordError:
			var msg string
			if err := json.Unmarshal(rec.Data, &msg); err != nil {
				return nil, "", fmt.Errorf("line %d: decode error: %w", line, err)
			}
			doc.Errors = append(doc.Errors, msg)
		default:
			return nil, "", fmt.Errorf("line %d: unknown record kind %q", line, rec.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("read export: %w", err)
	}
	return &doc, kind, nil
}
