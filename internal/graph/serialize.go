package graph

import (
	"encoding/json"
	"fmt"
	"io"
)

// Document is the interchange form of a graph. Each node and edge keeps
// its variant tag and full payload.
type Document struct {
	Nodes  []Node   `json:"nodes"`
	Edges  []Edge   `json:"edges"`
	Errors []string `json:"errors,omitempty"`
}

// ToDocument snapshots g into its interchange form.
func ToDocument(g Graph) *Document {
	return &Document{
		Nodes:  g.Nodes(),
		Edges:  g.Edges(),
		Errors: g.Errors(),
	}
}

// FromDocument rebuilds a graph of the given backend from doc. Nodes are
// added before edges so the indexed backend binds edges to real nodes.
func FromDocument(doc *Document, kind Kind) (Graph, error) {
	g, err := New(kind, len(doc.Nodes))
	if err != nil {
		return nil, err
	}
	for _, n := range doc.Nodes {
		g.AddNode(n.Type, n.Data)
	}
	for _, e := range doc.Edges {
		g.AddEdge(e)
	}
	for _, msg := range doc.Errors {
		g.AddError(msg)
	}
	return g, nil
}

// Marshal serializes g to JSON.
func Marshal(g Graph) ([]byte, error) {
	data, err := json.Marshal(ToDocument(g))
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a JSON graph into the given backend.
func Unmarshal(data []byte, kind Kind) (Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return FromDocument(&doc, kind)
}

// WriteJSON writes g as indented JSON to w.
func WriteJSON(w io.Writer, g Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToDocument(g)); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// ReadJSON reads a JSON graph from r into the given backend.
func ReadJSON(r io.Reader, kind Kind) (Graph, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return FromDocument(&doc, kind)
}
