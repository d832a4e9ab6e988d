package golang

import (
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const importsQuery = `(import_declaration) @imports`

const classesQuery = `
(type_declaration (type_spec (type_identifier) @class-name (struct_type)) @class-definition)
(type_declaration (type_spec (type_identifier) @class-name (interface_type)) @class-definition)
`

const functionsQuery = `
(function_declaration (identifier) @function-name) @function-definition
(method_declaration (field_identifier) @function-name) @function-definition
`

const callsQuery = `
(call_expression function: (identifier) @function-name) @function-call
(call_expression
  function: (selector_expression operand: (_) @operand field: (field_identifier) @function-name)) @function-call
`

// gin (GET), chi (Get), net/http and gorilla/mux (HandleFunc, Handle).
const endpointsQuery = `
((call_expression
   function: (selector_expression operand: (_) @router field: (field_identifier) @verb)
   arguments: (argument_list . (interpreted_string_literal) @route)) @endpoint
 (#match? @verb "^(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS|Get|Post|Put|Patch|Delete|Head|Options|HandleFunc|Handle)$"))
`

// chi's r.Mount("/prefix", subRouter()).
const endpointGroupsQuery = `
((call_expression
   function: (selector_expression field: (field_identifier) @method)
   arguments: (argument_list . (interpreted_string_literal) @route (call_expression function: (_) @group))) @endpoint-group
 (#eq? @method "Mount"))
`

const dataModelsQuery = `
(type_declaration (type_spec (type_identifier) @data-model-name (struct_type)) @data-model)
`

const dataModelUsageQuery = `(type_identifier) @data-model-name`

const instancesQuery = `
(source_file
  (var_declaration
    (var_spec (identifier) @instance-name
      (expression_list (composite_literal type: (_) @instance-type)))) @instance)
(source_file
  (var_declaration
    (var_spec (identifier) @instance-name
      (expression_list (unary_expression operand: (composite_literal type: (_) @instance-type))))) @instance)
`

const requestsQuery = `
((call_expression
   function: (selector_expression operand: (identifier) @client field: (field_identifier) @verb)
   arguments: (argument_list)) @request
 (#eq? @client "http")
 (#match? @verb "^(Get|Post|Head)$"))
((call_expression
   function: (selector_expression operand: (identifier) @client field: (field_identifier) @new)
   arguments: (argument_list (_) @method . (_) @route . (_) .)) @request
 (#eq? @client "http")
 (#match? @new "^NewRequest(WithContext)?$"))
`

// Stack implements parser.Stack for Go.
type Stack struct {
	queries *parser.Queries
}

// New creates the Go stack and compiles its queries.
func New() *Stack {
	lang := golang.GetLanguage()
	return &Stack{
		queries: &parser.Queries{
			Imports:        parser.MustQuery(lang, importsQuery),
			Classes:        parser.MustQuery(lang, classesQuery),
			Functions:      parser.MustQuery(lang, functionsQuery),
			Calls:          parser.MustQuery(lang, callsQuery),
			Endpoints:      parser.MustQuery(lang, endpointsQuery),
			EndpointGroups: parser.MustQuery(lang, endpointGroupsQuery),
			DataModels:     parser.MustQuery(lang, dataModelsQuery),
			DataModelUsage: parser.MustQuery(lang, dataModelUsageQuery),
			Instances:      parser.MustQuery(lang, instancesQuery),
			Requests:       parser.MustQuery(lang, requestsQuery),
		},
	}
}

func (s *Stack) Language() parser.Language {
	return parser.LangGo
}

func (s *Stack) Grammar() *sitter.Language {
	return golang.GetLanguage()
}

func (s *Stack) Extensions() []string {
	return parser.FileExtensions[parser.LangGo]
}

func (s *Stack) PackageFiles() []string {
	return parser.PackageFiles[parser.LangGo]
}

func (s *Stack) Queries() *parser.Queries {
	return s.queries
}

// FindFunctionParent returns the receiver type name of a method.
func (s *Stack) FindFunctionParent(fn *sitter.Node, src []byte) string {
	if fn.Type() != "method_declaration" {
		return ""
	}
	recv := fn.ChildByFieldName("receiver")
	if ids := parser.Descendants(recv, "type_identifier"); len(ids) > 0 {
		return ids[0].Content(src)
	}
	return ""
}

var testFuncRe = regexp.MustCompile(`^(Test|Benchmark|Fuzz|Example)([A-Z_]|$)`)

// IsTest reports test, benchmark, fuzz and example functions in _test.go
// files.
func (s *Stack) IsTest(name, file string) bool {
	return strings.HasSuffix(file, "_test.go") && testFuncRe.MatchString(name)
}

// TestKind treats tests in integration or e2e packages, and tests named
// *Integration*/*E2E*, as integration tests.
func (s *Stack) TestKind(name, file string) graph.NodeType {
	dir := filepath.ToSlash(filepath.Dir(file))
	if strings.Contains(dir, "integration") || strings.Contains(dir, "e2e") ||
		strings.Contains(name, "Integration") || strings.Contains(name, "E2E") {
		return graph.NodeIntegrationTest
	}
	return graph.NodeTest
}

var majorVersionRe = regexp.MustCompile(`^v[0-9]+$`)

// ImportedNames maps each package name in scope to its import path. An
// unnamed import binds the last path element, skipping a /vN major
// version suffix and a gopkg.in .vN suffix.
func (s *Stack) ImportedNames(stmt *sitter.Node, src []byte) map[string]string {
	names := make(map[string]string)
	for _, spec := range parser.Descendants(stmt, "import_spec") {
		p := spec.ChildByFieldName("path")
		if p == nil {
			continue
		}
		importPath := parser.Unquote(p.Content(src))
		name := packageName(importPath)
		if alias := spec.ChildByFieldName("name"); alias != nil {
			name = alias.Content(src)
		}
		if name == "_" || name == "." {
			continue
		}
		names[name] = importPath
	}
	return names
}

func packageName(importPath string) string {
	parts := strings.Split(importPath, "/")
	name := parts[len(parts)-1]
	if majorVersionRe.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "_")
}

// AnnotateClass marks interfaces and records embedded types as mixins.
func (s *Stack) AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData) {
	if parser.ChildOfType(def, "interface_type") != nil {
		nd.SetMeta(graph.MetaInterface, "true")
		return
	}
	st := parser.ChildOfType(def, "struct_type")
	if st == nil {
		return
	}
	var embedded []string
	for _, field := range parser.Descendants(st, "field_declaration") {
		if parser.ChildOfType(field, "field_identifier") != nil {
			continue
		}
		if t := field.ChildByFieldName("type"); t != nil {
			embedded = append(embedded, parser.LastSegment(strings.TrimPrefix(t.Content(src), "*")))
		}
	}
	if len(embedded) > 0 {
		nd.SetMeta(graph.MetaIncludes, strings.Join(embedded, ","))
	}
}
