package swift

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const importsQuery = `(import_declaration) @imports`

// Extensions have a user_type name and are not captured.
const classesQuery = `
(class_declaration name: (type_identifier) @class-name) @class-definition
(protocol_declaration name: (type_identifier) @class-name) @class-definition
`

const functionsQuery = `
(function_declaration name: (simple_identifier) @function-name) @function-definition
`

const callsQuery = `(call_expression) @function-call`

const dataModelsQuery = `
(class_declaration "struct" name: (type_identifier) @data-model-name) @data-model
`

const dataModelUsageQuery = `
(type_identifier) @data-model-name
((simple_identifier) @data-model-name
 (#match? @data-model-name "^[A-Z]"))
`

const requestsQuery = `(call_expression) @request`

// sessionCalls are the URLSession transfers that take a URL directly.
var sessionCalls = map[string]bool{
	"data":         true,
	"dataTask":     true,
	"download":     true,
	"downloadTask": true,
	"bytes":        true,
}

// Stack implements parser.Stack for Swift packages and apps.
type Stack struct {
	queries *parser.Queries
}

// New creates the Swift stack and compiles its queries.
func New() *Stack {
	lang := swift.GetLanguage()
	return &Stack{
		queries: &parser.Queries{
			Imports:        parser.MustQuery(lang, importsQuery),
			Classes:        parser.MustQuery(lang, classesQuery),
			Functions:      parser.MustQuery(lang, functionsQuery),
			Calls:          parser.MustQuery(lang, callsQuery),
			DataModels:     parser.MustQuery(lang, dataModelsQuery),
			DataModelUsage: parser.MustQuery(lang, dataModelUsageQuery),
			Requests:       parser.MustQuery(lang, requestsQuery),
		},
	}
}

func (s *Stack) Language() parser.Language {
	return parser.LangSwift
}

func (s *Stack) Grammar() *sitter.Language {
	return swift.GetLanguage()
}

func (s *Stack) Extensions() []string {
	return parser.FileExtensions[parser.LangSwift]
}

func (s *Stack) PackageFiles() []string {
	return parser.PackageFiles[parser.LangSwift]
}

func (s *Stack) Queries() *parser.Queries {
	return s.queries
}

// FindFunctionParent returns the type, extension or protocol enclosing fn.
func (s *Stack) FindFunctionParent(fn *sitter.Node, src []byte) string {
	owner := parser.Ancestor(fn, "class_declaration", "protocol_declaration")
	if owner == nil {
		return ""
	}
	if name := parser.ChildOfType(owner, "type_identifier", "user_type"); name != nil {
		return name.Content(src)
	}
	return ""
}

// IsTest reports XCTest methods: test-prefixed functions in test files.
func (s *Stack) IsTest(name, file string) bool {
	return strings.HasPrefix(name, "test") && isTestFile(file)
}

// TestKind classifies UI test targets as integration tests.
func (s *Stack) TestKind(name, file string) graph.NodeType {
	if strings.Contains(file, "UITests") {
		return graph.NodeIntegrationTest
	}
	return graph.NodeTest
}

// CallName returns the callee and receiver of a call: foo(), a.b.foo().
func (s *Stack) CallName(call *sitter.Node, src []byte) (name, operand string) {
	callee := call.NamedChild(0)
	if callee == nil {
		return "", ""
	}
	switch callee.Type() {
	case "simple_identifier":
		return callee.Content(src), ""
	case "navigation_expression":
		suffix := parser.ChildOfType(callee, "navigation_suffix")
		id := parser.ChildOfType(suffix, "simple_identifier")
		if id == nil {
			return "", ""
		}
		if target := callee.NamedChild(0); target != nil && target.Type() != "navigation_suffix" {
			operand = target.Content(src)
		}
		return id.Content(src), operand
	}
	return "", ""
}

// ImportedNames binds an imported module to itself.
func (s *Stack) ImportedNames(stmt *sitter.Node, src []byte) map[string]string {
	id := parser.ChildOfType(stmt, "identifier")
	if id == nil {
		return nil
	}
	module := id.Content(src)
	return map[string]string{parser.LastSegment(module): module}
}

// AnnotateClass records the first inherited type as parent and the rest
// as conformances. Protocols are interfaces.
func (s *Stack) AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData) {
	if def.Type() == "protocol_declaration" {
		nd.SetMeta(graph.MetaInterface, "true")
	}
	var names []string
	for i := 0; i < int(def.NamedChildCount()); i++ {
		c := def.NamedChild(i)
		if c.Type() != "inheritance_specifier" {
			continue
		}
		// Generic arguments hold type identifiers too; the base name is the first.
		if ids := parser.Descendants(c, "type_identifier"); len(ids) > 0 {
			names = append(names, ids[0].Content(src))
		}
	}
	if len(names) == 0 {
		return
	}
	nd.SetMeta(graph.MetaParent, names[0])
	if len(names) > 1 {
		nd.SetMeta(graph.MetaIncludes, strings.Join(names[1:], ","))
	}
}

// ExpandRequest keeps URLSession transfers given a literal URL and
// URLRequest constructions. A URLRequest takes its verb from a later
// httpMethod assignment on the same variable.
func (s *Stack) ExpandRequest(m *parser.Match, file string) (graph.NodeData, bool) {
	call := m.Node(parser.CapRequest)
	name, operand := s.CallName(call, m.Src)
	verb := "GET"
	switch {
	case name == "URLRequest" && operand == "":
		verb = httpMethod(call, m.Src)
	case strings.HasPrefix(operand, "URLSession") && sessionCalls[name]:
	default:
		return graph.NodeData{}, false
	}
	args := parser.ChildOfType(parser.ChildOfType(call, "call_suffix"), "value_arguments")
	str := parser.FirstString(args)
	if str == nil {
		return graph.NodeData{}, false
	}
	nd := parser.Record(parser.Unquote(str.Content(m.Src)), file, call, m.Src)
	nd.SetMeta(graph.MetaVerb, verb)
	return nd, true
}

func httpMethod(call *sitter.Node, src []byte) string {
	target := ".httpMethod"
	if decl := parser.Ancestor(call, "property_declaration"); decl != nil {
		if bound := parser.ChildOfType(decl, "pattern"); bound != nil {
			target = bound.Content(src) + target
		}
	}
	scope := parser.Ancestor(call, "function_declaration", "init_declaration", "lambda_literal")
	for _, a := range parser.Descendants(scope, "assignment") {
		if a.StartByte() < call.EndByte() || a.NamedChildCount() < 2 {
			continue
		}
		if !strings.HasSuffix(a.NamedChild(0).Content(src), target) {
			continue
		}
		if v := parser.VerbFromName(a.NamedChild(int(a.NamedChildCount()) - 1).Content(src)); v != "" {
			return v
		}
	}
	return "GET"
}

// isTestFile matches XCTest sources: FooTests.swift, FooTest.swift or
// anything under a Tests directory.
func isTestFile(file string) bool {
	name := strings.TrimSuffix(filepath.Base(file), ".swift")
	if strings.HasSuffix(name, "Tests") || strings.HasSuffix(name, "Test") {
		return true
	}
	for _, dir := range strings.Split(filepath.ToSlash(filepath.Dir(file)), "/") {
		if strings.HasSuffix(dir, "Tests") {
			return true
		}
	}
	return false
}
