package golang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// ExpandEndpoint turns a router registration into endpoint records.
//
//	r.GET("/users/:id", h.GetUser)                  gin
//	r.Get("/{id}", getUser)                         chi
//	mux.HandleFunc("GET /users/{id}", getUser)      net/http (1.22 patterns)
//	r.HandleFunc("/users", list).Methods("GET")     gorilla/mux
//
// Gin group prefixes assigned in the same function (api := r.Group("/api"))
// and enclosing chi r.Route("/p", func(r chi.Router) {...}) blocks are
// prepended to the path.
func (s *Stack) ExpandEndpoint(m *parser.Match, file string) []graph.NodeData {
	call := m.Node(parser.CapEndpoint)
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return nil
	}
	method := m.Text(parser.CapVerb)
	router := m.Text("router")
	isMux := method == "HandleFunc" || method == "Handle"
	if router == "http" && !isMux {
		// http.Get and friends are client calls.
		return nil
	}

	handler := handlerRef(args.NamedChild(int(args.NamedChildCount())-1), m.Src)
	if handler == "" {
		return nil
	}

	route := parser.Unquote(m.Text(parser.CapRoute))
	var verbs []string
	if isMux {
		if verb, p, ok := strings.Cut(route, " "); ok && parser.VerbFromName(verb) != "" {
			verbs = []string{parser.VerbFromName(verb)}
			route = strings.TrimSpace(p)
		} else {
			verbs = chainedMethods(call, m.Src)
		}
	} else {
		verbs = []string{parser.VerbFromName(method)}
	}
	if len(verbs) == 0 {
		// Any method.
		verbs = []string{""}
	}

	prefix := chiPrefix(call, m.Src)
	if op := m.Node("router"); op != nil && op.Type() == "identifier" {
		prefix = joinRoute(prefix, groupPrefix(call, router, m.Src, 0))
	}
	route = joinRoute(prefix, route)

	var out []graph.NodeData
	for _, verb := range verbs {
		nd := parser.Record(route, file, call, m.Src)
		if verb != "" {
			nd.SetMeta(graph.MetaVerb, verb)
		}
		nd.SetMeta(graph.MetaHandler, handler)
		out = append(out, nd)
	}
	return out
}

// handlerRef returns the handler named by a registration's last argument:
// an identifier, a selector (h.GetUser) or a conversion such as
// http.HandlerFunc(getUser). Inline function literals have no name.
func handlerRef(arg *sitter.Node, src []byte) string {
	switch arg.Type() {
	case "identifier", "selector_expression":
		return arg.Content(src)
	case "call_expression":
		inner := arg.ChildByFieldName("arguments")
		if inner == nil || inner.NamedChildCount() == 0 {
			return ""
		}
		return handlerRef(inner.NamedChild(int(inner.NamedChildCount())-1), src)
	}
	return ""
}

// chainedMethods reads gorilla/mux's .Methods("GET", "POST") following
// a HandleFunc call.
func chainedMethods(call *sitter.Node, src []byte) []string {
	sel := call.Parent()
	if sel == nil || sel.Type() != "selector_expression" {
		return nil
	}
	field := sel.ChildByFieldName("field")
	outer := sel.Parent()
	if field == nil || field.Content(src) != "Methods" || outer == nil || outer.Type() != "call_expression" {
		return nil
	}
	var verbs []string
	for _, arg := range parser.Descendants(outer.ChildByFieldName("arguments"), "interpreted_string_literal", "selector_expression") {
		if v := parser.VerbFromName(arg.Content(src)); v != "" {
			verbs = append(verbs, v)
		}
	}
	return verbs
}

// chiPrefix joins the paths of every r.Route("/p", func(r chi.Router) {...})
// enclosing call, outermost first.
func chiPrefix(call *sitter.Node, src []byte) string {
	var parts []string
	for p := call.Parent(); p != nil; p = p.Parent() {
		if p.Type() != "func_literal" {
			continue
		}
		args := p.Parent()
		if args == nil || args.Type() != "argument_list" || args.Parent() == nil {
			continue
		}
		outer := args.Parent()
		fn := outer.ChildByFieldName("function")
		if fn == nil || fn.Type() != "selector_expression" {
			continue
		}
		if field := fn.ChildByFieldName("field"); field == nil || field.Content(src) != "Route" {
			continue
		}
		if first := args.NamedChild(0); first != nil && first.Type() == "interpreted_string_literal" {
			parts = append([]string{parser.Unquote(first.Content(src))}, parts...)
		}
	}
	prefix := ""
	for _, p := range parts {
		prefix = joinRoute(prefix, p)
	}
	return prefix
}

// groupPrefix resolves a gin router group variable to its path prefix by
// finding "name := parent.Group("/p")" in the enclosing function body.
func groupPrefix(call *sitter.Node, name string, src []byte, depth int) string {
	if depth > 8 {
		return ""
	}
	body := parser.Ancestor(call, "function_declaration", "method_declaration", "func_literal")
	if body == nil {
		return ""
	}
	for _, decl := range parser.Descendants(body, "short_var_declaration", "assignment_statement") {
		left := decl.ChildByFieldName("left")
		right := decl.ChildByFieldName("right")
		if left == nil || right == nil || left.NamedChildCount() == 0 || right.NamedChildCount() == 0 {
			continue
		}
		if left.NamedChild(0).Content(src) != name {
			continue
		}
		group := right.NamedChild(0)
		if group.Type() != "call_expression" {
			continue
		}
		fn := group.ChildByFieldName("function")
		if fn == nil || fn.Type() != "selector_expression" {
			continue
		}
		field := fn.ChildByFieldName("field")
		operand := fn.ChildByFieldName("operand")
		if field == nil || field.Content(src) != "Group" || operand == nil {
			continue
		}
		lit := parser.FirstString(group.ChildByFieldName("arguments"))
		if lit == nil {
			continue
		}
		own := parser.Unquote(lit.Content(src))
		if operand.Type() == "identifier" && operand.Content(src) != name {
			return joinRoute(groupPrefix(decl, operand.Content(src), src, depth+1), own)
		}
		return own
	}
	return ""
}

func joinRoute(prefix, route string) string {
	if prefix == "" {
		return route
	}
	if route == "" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(route, "/")
}
