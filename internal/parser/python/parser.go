package python

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const importsQuery = `
(import_statement) @imports
(import_from_statement) @imports
`

const classesQuery = `(class_definition (identifier) @class-name) @class-definition`

const functionsQuery = `(function_definition (identifier) @function-name) @function-definition`

const callsQuery = `
(call function: (identifier) @function-name) @function-call
(call function: (attribute object: (_) @operand attribute: (identifier) @function-name)) @function-call
`

// Flask and FastAPI route decorators.
const endpointsQuery = `
((decorated_definition
   (decorator
     (call
       function: (attribute object: (identifier) @router attribute: (identifier) @verb)
       arguments: (argument_list . (string) @route)))
   (function_definition (identifier) @handler)) @endpoint
 (#match? @verb "^(get|post|put|patch|delete|head|options|route|api_route)$"))
`

const dataModelsQuery = `
((class_definition (identifier) @data-model-name (argument_list) @bases) @data-model
 (#match? @bases "\\b(BaseModel|Base|Model|SQLModel|DeclarativeBase)\\b"))
((decorated_definition (decorator) @decorator (class_definition (identifier) @data-model-name) @data-model)
 (#match? @decorator "dataclass"))
`

const dataModelUsageQuery = `(identifier) @data-model-name`

const instancesQuery = `
(module
  (expression_statement
    (assignment
      left: (identifier) @instance-name
      right: (call function: [(identifier) (attribute)] @instance-type))) @instance)
`

const requestsQuery = `
((call function: (attribute object: (identifier) @client attribute: (identifier) @verb)) @request
 (#match? @client "^(requests|httpx|session|client)$")
 (#match? @verb "^(get|post|put|patch|delete|head|options)$"))
`

// Stack implements parser.Stack for Python projects.
type Stack struct {
	queries *parser.Queries
}

// New creates the Python stack and compiles its queries.
func New() *Stack {
	lang := python.GetLanguage()
	return &Stack{
		queries: &parser.Queries{
			Imports:        parser.MustQuery(lang, importsQuery),
			Classes:        parser.MustQuery(lang, classesQuery),
			Functions:      parser.MustQuery(lang, functionsQuery),
			Calls:          parser.MustQuery(lang, callsQuery),
			Endpoints:      parser.MustQuery(lang, endpointsQuery),
			DataModels:     parser.MustQuery(lang, dataModelsQuery),
			DataModelUsage: parser.MustQuery(lang, dataModelUsageQuery),
			Instances:      parser.MustQuery(lang, instancesQuery),
			Requests:       parser.MustQuery(lang, requestsQuery),
		},
	}
}

func (s *Stack) Language() parser.Language {
	return parser.LangPython
}

func (s *Stack) Grammar() *sitter.Language {
	return python.GetLanguage()
}

func (s *Stack) Extensions() []string {
	return parser.FileExtensions[parser.LangPython]
}

func (s *Stack) PackageFiles() []string {
	return parser.PackageFiles[parser.LangPython]
}

func (s *Stack) Queries() *parser.Queries {
	return s.queries
}

// FindFunctionParent returns the class a function is defined in. Functions
// nested in other functions have no parent.
func (s *Stack) FindFunctionParent(fn *sitter.Node, src []byte) string {
	owner := parser.Ancestor(fn, "class_definition", "function_definition")
	if owner == nil || owner.Type() != "class_definition" {
		return ""
	}
	if name := parser.ChildOfType(owner, "identifier"); name != nil {
		return name.Content(src)
	}
	return ""
}

// IsTest reports pytest and unittest test functions.
func (s *Stack) IsTest(name, file string) bool {
	return strings.HasPrefix(name, "test") && isTestFile(file)
}

// TestKind classifies tests under integration or e2e folders.
func (s *Stack) TestKind(name, file string) graph.NodeType {
	for _, dir := range []string{"tests/integration/", "tests/e2e/", "integration_tests/", "e2e/"} {
		if strings.Contains(file, dir) {
			return graph.NodeIntegrationTest
		}
	}
	return graph.NodeTest
}

// ImportedNames maps the names bound by import and from-import statements
// to their module. "import a.b" binds a; "from .m import x as y" binds y
// to .m.
func (s *Stack) ImportedNames(stmt *sitter.Node, src []byte) map[string]string {
	names := make(map[string]string)
	switch stmt.Type() {
	case "import_statement":
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				module := child.Content(src)
				first, _, _ := strings.Cut(module, ".")
				names[first] = first
			case "aliased_import":
				if alias, module := aliased(child, src); alias != "" {
					names[alias] = module
				}
			}
		}
	case "import_from_statement":
		mod := stmt.ChildByFieldName("module_name")
		if mod == nil {
			return names
		}
		module := mod.Content(src)
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			if child.StartByte() == mod.StartByte() {
				continue
			}
			switch child.Type() {
			case "dotted_name":
				names[parser.LastSegment(child.Content(src))] = module
			case "aliased_import":
				if alias, _ := aliased(child, src); alias != "" {
					names[alias] = module
				}
			}
		}
	}
	return names
}

func aliased(n *sitter.Node, src []byte) (alias, module string) {
	if a := n.ChildByFieldName("alias"); a != nil {
		alias = a.Content(src)
	}
	if m := n.ChildByFieldName("name"); m != nil {
		module = m.Content(src)
	}
	return alias, module
}

// AnnotateClass records the first base as parent and the remaining bases
// as mixins. Protocol and ABC subclasses are interfaces.
func (s *Stack) AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData) {
	bases := parser.ChildOfType(def, "argument_list")
	if bases == nil {
		return
	}
	var names []string
	for i := 0; i < int(bases.NamedChildCount()); i++ {
		b := bases.NamedChild(i)
		switch b.Type() {
		case "identifier", "attribute":
			names = append(names, parser.LastSegment(b.Content(src)))
		case "subscript":
			// Generic[T], Protocol[T]
			if v := parser.ChildOfType(b, "identifier", "attribute"); v != nil {
				names = append(names, parser.LastSegment(v.Content(src)))
			}
		}
	}
	if len(names) == 0 {
		return
	}
	nd.SetMeta(graph.MetaParent, names[0])
	if len(names) > 1 {
		nd.SetMeta(graph.MetaIncludes, strings.Join(names[1:], ","))
	}
	for _, n := range names {
		if n == "Protocol" || n == "ABC" {
			nd.SetMeta(graph.MetaInterface, "true")
		}
	}
}

// ExpandEndpoint builds records for a route decorator. @app.route and
// @router.api_route take their verbs from methods=[...], defaulting to GET.
// A prefix= or url_prefix= on the router's constructor in the same module
// is prepended.
func (s *Stack) ExpandEndpoint(m *parser.Match, file string) []graph.NodeData {
	route := parser.Unquote(m.Text(parser.CapRoute))
	handler := m.Text(parser.CapHandler)
	if route == "" {
		return nil
	}
	if prefix := routerPrefix(m.Node(parser.CapEndpoint), m.Text("router"), m.Src); prefix != "" {
		route = strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(route, "/")
	}

	verbs := []string{parser.VerbFromName(m.Text(parser.CapVerb))}
	if verbs[0] == "" {
		verbs = methodsOption(m.Node(parser.CapRoute).Parent(), m.Src)
	}

	var out []graph.NodeData
	for _, verb := range verbs {
		nd := parser.Record(route, file, m.Node(parser.CapEndpoint), m.Src)
		nd.SetMeta(graph.MetaVerb, verb)
		nd.SetMeta(graph.MetaHandler, handler)
		out = append(out, nd)
	}
	return out
}

// methodsOption reads methods=["GET", "POST"] from a decorator's
// arguments.
func methodsOption(args *sitter.Node, src []byte) []string {
	var verbs []string
	for _, kw := range parser.Descendants(args, "keyword_argument") {
		name := kw.ChildByFieldName("name")
		val := kw.ChildByFieldName("value")
		if name == nil || val == nil || name.Content(src) != "methods" {
			continue
		}
		for _, str := range parser.Descendants(val, "string") {
			if v := parser.VerbFromName(str.Content(src)); v != "" {
				verbs = append(verbs, v)
			}
		}
	}
	if len(verbs) == 0 {
		return []string{"GET"}
	}
	return verbs
}

// routerPrefix finds "router = APIRouter(prefix='/p')" or
// "bp = Blueprint('x', __name__, url_prefix='/p')" at module level.
func routerPrefix(n *sitter.Node, router string, src []byte) string {
	if n == nil || router == "" {
		return ""
	}
	root := n
	for root.Parent() != nil {
		root = root.Parent()
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		assign := parser.ChildOfType(stmt, "assignment")
		if stmt.Type() != "expression_statement" || assign == nil {
			continue
		}
		left, right := assign.ChildByFieldName("left"), assign.ChildByFieldName("right")
		if left == nil || right == nil || left.Content(src) != router || right.Type() != "call" {
			continue
		}
		for _, kw := range parser.Descendants(right, "keyword_argument") {
			name := kw.ChildByFieldName("name")
			val := kw.ChildByFieldName("value")
			if name == nil || val == nil {
				continue
			}
			if k := name.Content(src); k == "prefix" || k == "url_prefix" {
				return parser.Unquote(val.Content(src))
			}
		}
	}
	return ""
}

// isTestFile returns true for pytest-collected module names and files under
// a tests directory.
func isTestFile(file string) bool {
	base := filepath.Base(file)
	if !strings.HasSuffix(base, ".py") {
		return false
	}
	name := strings.TrimSuffix(base, ".py")
	return strings.HasPrefix(name, "test_") ||
		strings.HasSuffix(name, "_test") ||
		strings.Contains(filepath.ToSlash(file), "tests/")
}
