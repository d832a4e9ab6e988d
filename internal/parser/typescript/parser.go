package typescript

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	tsgrammar "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const importsQuery = `(import_statement) @imports`

const classesQuery = `
(class_declaration (type_identifier) @class-name) @class-definition
(abstract_class_declaration (type_identifier) @class-name) @class-definition
(interface_declaration (type_identifier) @class-name) @class-definition
`

const functionsQuery = `
(function_declaration (identifier) @function-name) @function-definition
(method_definition (property_identifier) @function-name) @function-definition
(lexical_declaration (variable_declarator (identifier) @function-name (arrow_function))) @function-definition
`

const callsQuery = `
(call_expression function: (identifier) @function-name) @function-call
(call_expression
  function: (member_expression object: (_) @operand property: (property_identifier) @function-name)) @function-call
`

const endpointsQuery = `
((call_expression
   function: (member_expression object: (identifier) property: (property_identifier) @verb)
   arguments: (arguments . (string) @route (_) @handler .)) @endpoint
 (#match? @verb "^(get|post|put|patch|delete|head|options)$"))
`

const dataModelsQuery = `
(interface_declaration (type_identifier) @data-model-name) @data-model
(type_alias_declaration (type_identifier) @data-model-name (object_type)) @data-model
((class_declaration (decorator) @decorator (type_identifier) @data-model-name) @data-model
 (#match? @decorator "^@Entity"))
((class_declaration (type_identifier) @data-model-name (class_heritage) @heritage) @data-model
 (#match? @heritage "extends\\s+(Model|BaseEntity)\\b"))
`

const dataModelUsageQuery = `
(type_identifier) @data-model-name
(identifier) @data-model-name
`

const instancesQuery = `
(program
  (lexical_declaration
    (variable_declarator (identifier) @instance-name (new_expression (identifier) @instance-type))) @instance)
(program
  (export_statement
    (lexical_declaration
      (variable_declarator (identifier) @instance-name (new_expression (identifier) @instance-type))) @instance))
`

const requestsQuery = `
((call_expression function: (identifier) @callee arguments: (arguments)) @request
 (#match? @callee "^(fetch|axios)$"))
((call_expression
   function: (member_expression object: (identifier) @client property: (property_identifier) @verb)
   arguments: (arguments)) @request
 (#match? @client "^(axios|http|api|client|apiClient|httpClient)$")
 (#match? @verb "^(get|post|put|patch|delete|head|options)$"))
`

const testsQuery = `
((program
   (expression_statement
     (call_expression (identifier) @callee (arguments . (string) @test-name))) @test)
 (#match? @callee "^(describe|test|it)$"))
`

// React additions: JSX elements count as calls to the component they name,
// styled-components are components, and <Route> elements are pages.
const styledFunctionsQuery = `
((lexical_declaration
   (variable_declarator (identifier) @function-name
     (call_expression (member_expression (identifier) @styled) (template_string)))) @function-definition
 (#eq? @styled "styled"))
((lexical_declaration
   (variable_declarator (identifier) @function-name
     (call_expression (call_expression (identifier) @styled) (template_string)))) @function-definition
 (#eq? @styled "styled"))
`

const jsxCallsQuery = `
(jsx_self_closing_element (identifier) @function-name) @function-call
(jsx_opening_element (identifier) @function-name) @function-call
`

const pagesQuery = `
((jsx_self_closing_element (identifier) @tag) @page (#eq? @tag "Route"))
((jsx_opening_element (identifier) @tag) @page (#eq? @tag "Route"))
`

// Stack implements parser.Stack for TypeScript and, with the TSX grammar,
// for React projects.
type Stack struct {
	lang    parser.Language
	grammar *sitter.Language
	queries *parser.Queries
}

// New creates the TypeScript stack.
func New() *Stack {
	lang := tsgrammar.GetLanguage()
	return &Stack{
		lang:    parser.LangTypeScript,
		grammar: lang,
		queries: baseQueries(lang, functionsQuery, callsQuery),
	}
}

// NewReact creates the React stack. It parses with the TSX grammar and adds
// components and pages on top of the TypeScript queries.
func NewReact() *Stack {
	lang := tsx.GetLanguage()
	q := baseQueries(lang, functionsQuery+styledFunctionsQuery, callsQuery+jsxCallsQuery)
	q.Pages = parser.MustQuery(lang, pagesQuery)
	return &Stack{
		lang:    parser.LangReact,
		grammar: lang,
		queries: q,
	}
}

func baseQueries(lang *sitter.Language, functions, calls string) *parser.Queries {
	return &parser.Queries{
		Imports:        parser.MustQuery(lang, importsQuery),
		Classes:        parser.MustQuery(lang, classesQuery),
		Functions:      parser.MustQuery(lang, functions),
		Calls:          parser.MustQuery(lang, calls),
		Endpoints:      parser.MustQuery(lang, endpointsQuery),
		DataModels:     parser.MustQuery(lang, dataModelsQuery),
		DataModelUsage: parser.MustQuery(lang, dataModelUsageQuery),
		Instances:      parser.MustQuery(lang, instancesQuery),
		Requests:       parser.MustQuery(lang, requestsQuery),
		Tests:          parser.MustQuery(lang, testsQuery),
	}
}

func (s *Stack) Language() parser.Language {
	return s.lang
}

func (s *Stack) Grammar() *sitter.Language {
	return s.grammar
}

func (s *Stack) Extensions() []string {
	return parser.FileExtensions[s.lang]
}

func (s *Stack) PackageFiles() []string {
	return parser.PackageFiles[s.lang]
}

func (s *Stack) Queries() *parser.Queries {
	return s.queries
}

// FindFunctionParent returns the class enclosing a method.
func (s *Stack) FindFunctionParent(fn *sitter.Node, src []byte) string {
	class := parser.Ancestor(fn, "class_declaration", "abstract_class_declaration", "class")
	if class == nil {
		return ""
	}
	if name := parser.ChildOfType(class, "type_identifier", "identifier"); name != nil {
		return name.Content(src)
	}
	return ""
}

// IsTest reports test-prefixed helper functions declared in test files.
// Jest blocks are found by the tests query.
func (s *Stack) IsTest(name, file string) bool {
	return isTestFilename(filepath.Base(file)) && strings.HasPrefix(name, "test")
}

// TestKind treats end-to-end suites (cypress, playwright, e2e folders) as
// integration tests.
func (s *Stack) TestKind(name, file string) graph.NodeType {
	for _, marker := range []string{"e2e/", ".e2e.", "cypress/", "playwright/", "__integration__/"} {
		if strings.Contains(file, marker) {
			return graph.NodeIntegrationTest
		}
	}
	return graph.NodeTest
}

// ImportedNames maps default, named and namespace imports to the module
// they come from.
func (s *Stack) ImportedNames(stmt *sitter.Node, src []byte) map[string]string {
	source := stmt.ChildByFieldName("source")
	if source == nil {
		source = parser.ChildOfType(stmt, "string")
	}
	if source == nil {
		return nil
	}
	module := parser.Unquote(source.Content(src))

	names := make(map[string]string)
	clause := parser.ChildOfType(stmt, "import_clause")
	if clause == nil {
		return names
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			// import axios from 'axios'
			names[child.Content(src)] = module
		case "named_imports":
			// import { format, parse as p } from './utils'
			for _, spec := range parser.Descendants(child, "import_specifier") {
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if local != nil {
					names[local.Content(src)] = module
				}
			}
		case "namespace_import":
			// import * as utils from './utils'
			if id := parser.ChildOfType(child, "identifier"); id != nil {
				names[id.Content(src)] = module
			}
		}
	}
	return names
}

// AnnotateClass records extends and implements clauses and marks
// interfaces.
func (s *Stack) AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData) {
	if def.Type() == "interface_declaration" {
		nd.SetMeta(graph.MetaInterface, "true")
		return
	}
	heritage := parser.ChildOfType(def, "class_heritage")
	if heritage == nil {
		return
	}
	if ext := parser.ChildOfType(heritage, "extends_clause"); ext != nil {
		if base := parser.ChildOfType(ext, "identifier", "member_expression"); base != nil {
			nd.SetMeta(graph.MetaParent, parser.LastSegment(base.Content(src)))
		}
	}
	if impl := parser.ChildOfType(heritage, "implements_clause"); impl != nil {
		var ifaces []string
		for i := 0; i < int(impl.NamedChildCount()); i++ {
			t := impl.NamedChild(i)
			if t.Type() == "generic_type" {
				t = parser.ChildOfType(t, "type_identifier")
			}
			if t != nil && t.Type() == "type_identifier" {
				ifaces = append(ifaces, t.Content(src))
			}
		}
		if len(ifaces) > 0 {
			nd.SetMeta(graph.MetaImplements, graph.JoinList(ifaces))
		}
	}
}

// AnnotateFunction marks React components: styled-components and
// capitalized functions that return JSX.
func (s *Stack) AnnotateFunction(def *sitter.Node, src []byte, nd *graph.NodeData) {
	if isStyled(def, src) {
		nd.SetMeta(graph.MetaComponent, "true")
		return
	}
	if nd.Name == "" || strings.ToUpper(nd.Name[:1]) != nd.Name[:1] {
		return
	}
	if len(parser.Descendants(def, "jsx_element", "jsx_self_closing_element", "jsx_fragment")) > 0 {
		nd.SetMeta(graph.MetaComponent, "true")
	}
}

func isStyled(def *sitter.Node, src []byte) bool {
	decl := parser.ChildOfType(def, "variable_declarator")
	if decl == nil {
		return false
	}
	call := parser.ChildOfType(decl, "call_expression")
	if call == nil || parser.ChildOfType(call, "template_string") == nil {
		return false
	}
	fn := call.NamedChild(0)
	for fn != nil && (fn.Type() == "member_expression" || fn.Type() == "call_expression") {
		fn = fn.NamedChild(0)
	}
	return fn != nil && fn.Content(src) == "styled"
}

// ExpandEndpoint builds an Express route record. Inline handlers carry no
// handler reference.
func (s *Stack) ExpandEndpoint(m *parser.Match, file string) []graph.NodeData {
	route := parser.Unquote(m.Text(parser.CapRoute))
	if route == "" {
		return nil
	}
	nd := parser.Record(route, file, m.Node(parser.CapEndpoint), m.Src)
	nd.SetMeta(graph.MetaVerb, parser.VerbFromName(m.Text(parser.CapVerb)))
	if h := m.Node(parser.CapHandler); h != nil {
		switch h.Type() {
		case "identifier":
			nd.SetMeta(graph.MetaHandler, h.Content(m.Src))
		case "member_expression":
			if prop := h.ChildByFieldName("property"); prop != nil {
				nd.SetMeta(graph.MetaHandler, prop.Content(m.Src))
			}
		}
	}
	return []graph.NodeData{nd}
}

// isTestFilename returns true if the filename matches TypeScript test file patterns.
func isTestFilename(base string) bool {
	for _, marker := range []string{".test.", ".spec.", ".cy.", ".e2e."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	return false
}
