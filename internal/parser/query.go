package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
)

// MustQuery compiles a query pattern and panics on failure. Patterns are
// fixed at build time, so a compile error is a programming error.
func MustQuery(lang *sitter.Language, pattern string) *sitter.Query {
	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		panic(fmt.Sprintf("compiling query: %v\n%s", err, pattern))
	}
	return q
}

// Parse parses src with a fresh parser for lang.
func Parse(ctx context.Context, lang *sitter.Language, src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	p.SetLanguage(lang)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Match is one query match with its captures indexed by name. When a
// capture name occurs more than once the first node wins.
type Match struct {
	Pattern  uint16
	Captures map[string]*sitter.Node
	Src      []byte
}

// Node returns the node captured under name, or nil.
func (m *Match) Node(name string) *sitter.Node {
	return m.Captures[name]
}

// Text returns the source text captured under name, or "".
func (m *Match) Text(name string) string {
	n := m.Captures[name]
	if n == nil {
		return ""
	}
	return n.Content(m.Src)
}

// Matches runs q over root and returns the matches that survive the
// query's predicates. A nil query yields no matches.
func Matches(q *sitter.Query, root *sitter.Node, src []byte) []*Match {
	if q == nil || root == nil {
		return nil
	}
	qc := sitter.NewQueryCursor()
	qc.Exec(q, root)

	var out []*Match
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, src)
		if len(m.Captures) == 0 {
			continue
		}
		match := &Match{
			Pattern:  m.PatternIndex,
			Captures: make(map[string]*sitter.Node, len(m.Captures)),
			Src:      src,
		}
		for _, c := range m.Captures {
			name := q.CaptureNameForId(c.Index)
			if _, seen := match.Captures[name]; !seen {
				match.Captures[name] = c.Node
			}
		}
		out = append(out, match)
	}
	return out
}

// Record builds a node payload spanning n.
func Record(name, file string, n *sitter.Node, src []byte) graph.NodeData {
	nd := graph.NodeData{Name: name, File: file}
	if n != nil {
		nd.Start = int(n.StartPoint().Row)
		nd.End = int(n.EndPoint().Row)
		nd.Body = n.Content(src)
	}
	return nd
}

// Unquote strips string delimiters, a Ruby symbol colon and Python string
// prefixes from a literal.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ":") && !strings.HasPrefix(s, "::") {
		return strings.Trim(s[1:], `"'`)
	}
	if i := strings.IndexAny(s, "\"'`"); i > 0 && i <= 2 && strings.Trim(strings.ToLower(s[:i]), "rbfu") == "" {
		s = s[i:]
	}
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

var stringTypes = map[string]bool{
	"string":                     true,
	"template_string":            true,
	"interpreted_string_literal": true,
	"raw_string_literal":         true,
	"line_string_literal":        true,
}

// FirstString returns the first string literal under n in document order,
// or nil.
func FirstString(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if stringTypes[n.Type()] {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s := FirstString(n.NamedChild(i)); s != nil {
			return s
		}
	}
	return nil
}

// ChildOfType returns the first named child of n whose type is one of types.
func ChildOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// Descendants returns every node under n (inclusive) whose type is one of
// types, in document order.
func Descendants(n *sitter.Node, types ...string) []*sitter.Node {
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		for _, t := range types {
			if c.Type() == t {
				out = append(out, c)
				break
			}
		}
		for i := 0; i < int(c.NamedChildCount()); i++ {
			walk(c.NamedChild(i))
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Ancestor returns the nearest ancestor of n whose type is one of types.
func Ancestor(n *sitter.Node, types ...string) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		for _, t := range types {
			if p.Type() == t {
				return p
			}
		}
	}
	return nil
}

var httpVerbs = map[string]string{
	"get":     "GET",
	"post":    "POST",
	"put":     "PUT",
	"patch":   "PATCH",
	"delete":  "DELETE",
	"head":    "HEAD",
	"options": "OPTIONS",
}

// VerbFromName maps a router or client method name (get, Get, GET,
// http.MethodPost) to an upper-case HTTP verb, or "" when it is not one.
func VerbFromName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "http.Method")
	return httpVerbs[strings.ToLower(Unquote(name))]
}

// LastSegment returns the part of a dotted or scoped reference after the
// final separator: "h.GetPerson" → "GetPerson", "Admin::User" → "User".
func LastSegment(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, ".:"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
