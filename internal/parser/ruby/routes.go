package ruby

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// httpMethods are Rails route DSL method names.
var httpMethods = map[string]string{
	"get":    "GET",
	"post":   "POST",
	"put":    "PUT",
	"delete": "DELETE",
	"patch":  "PATCH",
}

// resourceAction is one of the routes generated by resources/resource.
type resourceAction struct {
	action string
	verb   string
	suffix string
}

var pluralActions = []resourceAction{
	{"index", "GET", ""},
	{"create", "POST", ""},
	{"new", "GET", "/new"},
	{"edit", "GET", "/:id/edit"},
	{"show", "GET", "/:id"},
	{"update", "PATCH", "/:id"},
	{"update", "PUT", "/:id"},
	{"destroy", "DELETE", "/:id"},
}

var singularActions = []resourceAction{
	{"show", "GET", ""},
	{"create", "POST", ""},
	{"new", "GET", "/new"},
	{"edit", "GET", "/edit"},
	{"update", "PATCH", ""},
	{"update", "PUT", ""},
	{"destroy", "DELETE", ""},
}

// routeScope is an enclosing block of the routes DSL.
type routeScope struct {
	kind string // resources, resource, namespace, scope, member, collection
	name string
}

// ExpandEndpoint turns a routes.rb call into endpoint records. Verb calls
// yield one record per verb; resources and resource yield the RESTful
// actions left after only:/except: filtering. Enclosing namespace, scope,
// resources, member and collection blocks contribute path prefixes.
func (s *Stack) ExpandEndpoint(m *parser.Match, file string) []graph.NodeData {
	call := m.Node(parser.CapEndpoint)
	if call == nil || !isRoutesFile(file) || call.ChildByFieldName("receiver") != nil {
		return nil
	}
	args := parser.ChildOfType(call, "argument_list")
	if args == nil {
		return nil
	}
	r := &routeCall{
		call:   call,
		src:    m.Src,
		file:   file,
		method: m.Text(parser.CapVerb),
		scopes: enclosingScopes(call, m.Src),
	}
	r.readArgs(args)

	switch r.method {
	case "resources":
		return r.expandResources(pluralActions, true)
	case "resource":
		return r.expandResources(singularActions, false)
	default:
		return r.expandVerb()
	}
}

type routeCall struct {
	call   *sitter.Node
	src    []byte
	file   string
	method string
	scopes []routeScope

	path    string
	options map[string][]string
	hasOpt  map[string]bool
}

// readArgs collects the first positional argument and the keyword options.
// "path" => "c#a" pairs are folded into path and to:.
func (r *routeCall) readArgs(args *sitter.Node) {
	r.options = make(map[string][]string)
	r.hasOpt = make(map[string]bool)
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string", "simple_symbol":
			if r.path == "" {
				r.path = parser.Unquote(arg.Content(r.src))
			}
		case "pair":
			key := arg.NamedChild(0)
			if key == nil || arg.NamedChildCount() < 2 {
				continue
			}
			val := arg.NamedChild(int(arg.NamedChildCount()) - 1)
			if key.Type() == "string" {
				r.path = parser.Unquote(key.Content(r.src))
				r.setOpt("to", val)
				continue
			}
			r.setOpt(strings.TrimSuffix(parser.Unquote(key.Content(r.src)), ":"), val)
		}
	}
}

func (r *routeCall) setOpt(key string, val *sitter.Node) {
	r.hasOpt[key] = true
	if val.Type() == "array" {
		for i := 0; i < int(val.NamedChildCount()); i++ {
			r.options[key] = append(r.options[key], parser.Unquote(val.NamedChild(i).Content(r.src)))
		}
		return
	}
	r.options[key] = append(r.options[key], parser.Unquote(val.Content(r.src)))
}

func (r *routeCall) opt(key string) string {
	if v := r.options[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (r *routeCall) record(name, verb, handler string) graph.NodeData {
	nd := parser.Record(name, r.file, r.call, r.src)
	nd.SetMeta(graph.MetaVerb, verb)
	if handler != "" {
		nd.SetMeta(graph.MetaHandler, handler)
	}
	return nd
}

func (r *routeCall) expandVerb() []graph.NodeData {
	if r.path == "" {
		return nil
	}
	var verbs []string
	if v, ok := httpMethods[r.method]; ok {
		verbs = []string{v}
	} else {
		// match 'path', via: [:get, :post]
		for _, via := range r.options["via"] {
			if v, ok := httpMethods[via]; ok {
				verbs = append(verbs, v)
			}
		}
	}

	name := r.path
	if prefix := scopePrefix(r.scopes); prefix != "" {
		name = prefix + "/" + strings.TrimPrefix(r.path, "/")
	}
	handler := r.handler()

	var out []graph.NodeData
	for _, verb := range verbs {
		out = append(out, r.record(name, verb, handler))
	}
	return out
}

// handler resolves the controller#action a verb route dispatches to.
func (r *routeCall) handler() string {
	ns := namespacePath(r.scopes)
	qualify := func(ctrl string) string {
		if ns != "" && !strings.Contains(ctrl, "/") {
			return ns + "/" + ctrl
		}
		return ctrl
	}

	if to := r.opt("to"); strings.Contains(to, "#") {
		return qualify(to)
	}
	ctrl := r.opt("controller")
	if ctrl == "" {
		ctrl = controllerName(r.scopes)
	}
	action := r.opt("action")
	if action == "" {
		action = r.opt("to")
	}
	if ctrl != "" {
		if action == "" {
			action = lastPathSegment(r.path)
		}
		return qualify(ctrl) + "#" + action
	}

	// get 'welcome/index' routes to welcome#index.
	if c, a, ok := strings.Cut(strings.Trim(r.path, "/"), "/"); ok && !strings.ContainsAny(c+a, ":/*(") {
		return qualify(c) + "#" + a
	}
	return ""
}

func (r *routeCall) expandResources(actions []resourceAction, plural bool) []graph.NodeData {
	if r.path == "" {
		return nil
	}
	allowed := func(action string) bool {
		if r.hasOpt["only"] {
			return contains(r.options["only"], action)
		}
		return !contains(r.options["except"], action)
	}

	base := scopePrefix(r.scopes) + "/" + r.path
	if p := r.opt("path"); p != "" {
		base = scopePrefix(r.scopes) + "/" + strings.Trim(p, "/")
	}
	ctrl := r.opt("controller")
	if ctrl == "" {
		ctrl = r.path
		if !plural {
			ctrl = pluralize(ctrl)
		}
	}
	if ns := namespacePath(r.scopes); ns != "" {
		ctrl = ns + "/" + ctrl
	}

	var out []graph.NodeData
	for _, a := range actions {
		if !allowed(a.action) {
			continue
		}
		out = append(out, r.record(base+a.suffix, a.verb, ctrl+"#"+a.action))
	}
	return out
}

// enclosingScopes returns the routes DSL blocks around call, outermost first.
func enclosingScopes(call *sitter.Node, src []byte) []routeScope {
	var scopes []routeScope
	for p := call.Parent(); p != nil; p = p.Parent() {
		if p.Type() != "call" || p.ChildByFieldName("receiver") != nil {
			continue
		}
		method := parser.ChildOfType(p, "identifier")
		if method == nil {
			continue
		}
		kind := method.Content(src)
		switch kind {
		case "resources", "resource", "namespace", "scope":
			name := ""
			if args := parser.ChildOfType(p, "argument_list"); args != nil {
				if first := parser.ChildOfType(args, "simple_symbol", "string"); first != nil {
					name = strings.Trim(parser.Unquote(first.Content(src)), "/")
				}
			}
			scopes = append(scopes, routeScope{kind: kind, name: name})
		case "member", "collection":
			scopes = append(scopes, routeScope{kind: kind})
		}
	}
	for i, j := 0, len(scopes)-1; i < j; i, j = i+1, j-1 {
		scopes[i], scopes[j] = scopes[j], scopes[i]
	}
	return scopes
}

// scopePrefix renders the path prefix contributed by enclosing blocks.
// A resources block adds /:id inside member, nothing extra inside
// collection and /:singular_id around nested routes.
func scopePrefix(scopes []routeScope) string {
	var b strings.Builder
	for i, sc := range scopes {
		switch sc.kind {
		case "namespace", "scope", "resource":
			if sc.name != "" {
				b.WriteString("/" + sc.name)
			}
		case "resources":
			b.WriteString("/" + sc.name)
			next := ""
			if i+1 < len(scopes) {
				next = scopes[i+1].kind
			}
			switch next {
			case "collection":
			case "member":
				b.WriteString("/:id")
			default:
				b.WriteString("/:" + singularize(sc.name) + "_id")
			}
		}
	}
	return b.String()
}

// namespacePath joins enclosing namespace names into a controller prefix.
func namespacePath(scopes []routeScope) string {
	var parts []string
	for _, sc := range scopes {
		if sc.kind == "namespace" {
			parts = append(parts, sc.name)
		}
	}
	return strings.Join(parts, "/")
}

// controllerName returns the controller of the innermost resources block.
func controllerName(scopes []routeScope) string {
	for i := len(scopes) - 1; i >= 0; i-- {
		switch scopes[i].kind {
		case "resources":
			return scopes[i].name
		case "resource":
			return pluralize(scopes[i].name)
		}
	}
	return ""
}

func lastPathSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

var irregularPlurals = map[string]string{
	"people":   "person",
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"mice":     "mouse",
}

func singularize(word string) string {
	if s, ok := irregularPlurals[word]; ok {
		return s
	}
	switch {
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "sses"), strings.HasSuffix(word, "xes"), strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

func pluralize(word string) string {
	for plural, singular := range irregularPlurals {
		if singular == word {
			return plural
		}
	}
	switch {
	case strings.HasSuffix(word, "y") && !strings.HasSuffix(word, "ey"):
		return strings.TrimSuffix(word, "y") + "ies"
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"), strings.HasSuffix(word, "ch"), strings.HasSuffix(word, "sh"):
		return word + "es"
	}
	return word + "s"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
