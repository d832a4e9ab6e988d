package ruby

import (
	"path"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const importsQuery = `
((call (identifier) @kind (argument_list (string) @source)) @imports
 (#match? @kind "^(require|require_relative)$"))
`

const classesQuery = `
(class [(constant) (scope_resolution)] @class-name) @class-definition
(module [(constant) (scope_resolution)] @class-name) @class-definition
`

const functionsQuery = `
(method (identifier) @function-name) @function-definition
(singleton_method (identifier) @function-name) @function-definition
`

// A bare identifier statement is a zero-argument method call.
const callsQuery = `
(call) @function-call
(body_statement (identifier) @function-name @function-call)
`

const endpointsQuery = `
((call (identifier) @verb (argument_list)) @endpoint
 (#match? @verb "^(get|post|put|patch|delete|match|resources|resource)$"))
`

const dataModelsQuery = `
((class [(constant) (scope_resolution)] @data-model-name (superclass) @superclass) @data-model
 (#match? @superclass "(ApplicationRecord|ActiveRecord::Base)"))
`

const dataModelUsageQuery = `(constant) @data-model-name`

const instancesQuery = `
((assignment
   [(identifier) (instance_variable) (constant)] @instance-name
   (call [(constant) (scope_resolution)] @instance-type (identifier) @new)) @instance
 (#eq? @new "new"))
`

const requestsQuery = `
((call [(constant) (scope_resolution)] @operand (identifier) @verb) @request
 (#match? @operand "^(HTTParty|Net::HTTP|RestClient|Faraday)$")
 (#match? @verb "^(get|post|put|patch|delete|get_response)$"))
`

const testsQuery = `
((program (call (identifier) @callee (argument_list . (_) @test-name)) @test)
 (#match? @callee "^(describe|context|feature)$"))
((call (identifier) @callee (argument_list . (string) @test-name)) @test
 (#eq? @callee "test"))
`

// Stack implements parser.Stack for Ruby on Rails projects.
type Stack struct {
	queries *parser.Queries
}

// New creates the Ruby stack and compiles its queries.
func New() *Stack {
	lang := ruby.GetLanguage()
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
			Tests:          parser.MustQuery(lang, testsQuery),
		},
	}
}

func (s *Stack) Language() parser.Language {
	return parser.LangRuby
}

func (s *Stack) Grammar() *sitter.Language {
	return ruby.GetLanguage()
}

func (s *Stack) Extensions() []string {
	return parser.FileExtensions[parser.LangRuby]
}

func (s *Stack) PackageFiles() []string {
	return parser.PackageFiles[parser.LangRuby]
}

func (s *Stack) Queries() *parser.Queries {
	return s.queries
}

// FindFunctionParent returns the innermost class or module enclosing fn.
func (s *Stack) FindFunctionParent(fn *sitter.Node, src []byte) string {
	owner := parser.Ancestor(fn, "class", "module")
	if owner == nil {
		return ""
	}
	if name := parser.ChildOfType(owner, "constant", "scope_resolution"); name != nil {
		return name.Content(src)
	}
	return ""
}

// IsTest reports minitest-style test methods in test files.
func (s *Stack) IsTest(name, file string) bool {
	return isTestFilename(filepath.Base(file)) && strings.HasPrefix(name, "test_")
}

// TestKind classifies request, feature and system specs as integration tests.
func (s *Stack) TestKind(name, file string) graph.NodeType {
	for _, dir := range []string{"spec/requests/", "spec/features/", "spec/system/", "test/integration/", "test/system/"} {
		if strings.Contains(file, dir) {
			return graph.NodeIntegrationTest
		}
	}
	return graph.NodeTest
}

// CallName returns the method and receiver of a call node.
func (s *Stack) CallName(call *sitter.Node, src []byte) (name, operand string) {
	if m := call.ChildByFieldName("method"); m != nil {
		name = m.Content(src)
	}
	if r := call.ChildByFieldName("receiver"); r != nil {
		operand = r.Content(src)
	}
	if name != "" {
		return name, operand
	}

	// Fall back to positional children: receiver first, method last.
	var idents []*sitter.Node
	for i := 0; i < int(call.NamedChildCount()); i++ {
		c := call.NamedChild(i)
		switch c.Type() {
		case "identifier", "constant", "scope_resolution", "instance_variable", "self":
			idents = append(idents, c)
		}
	}
	if len(idents) == 0 {
		return "", ""
	}
	name = idents[len(idents)-1].Content(src)
	if len(idents) > 1 {
		operand = idents[0].Content(src)
	}
	return name, operand
}

// ImportedNames binds a required path to its last segment.
func (s *Stack) ImportedNames(stmt *sitter.Node, src []byte) map[string]string {
	str := parser.FirstString(parser.ChildOfType(stmt, "argument_list"))
	if str == nil {
		return nil
	}
	source := parser.Unquote(str.Content(src))
	if kind := parser.ChildOfType(stmt, "identifier"); kind != nil && kind.Content(src) == "require_relative" && !strings.HasPrefix(source, ".") {
		source = "./" + source
	}
	return map[string]string{path.Base(source): source}
}

// AnnotateClass records the superclass and included/extended modules.
func (s *Stack) AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData) {
	if sup := parser.ChildOfType(def, "superclass"); sup != nil {
		if name := parser.ChildOfType(sup, "constant", "scope_resolution"); name != nil {
			nd.SetMeta(graph.MetaParent, name.Content(src))
		}
	}
	body := parser.ChildOfType(def, "body_statement")
	if body == nil {
		return
	}
	var includes []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() != "call" {
			continue
		}
		method, _ := s.CallName(child, src)
		if method != "include" && method != "extend" {
			continue
		}
		args := parser.ChildOfType(child, "argument_list")
		for j := 0; args != nil && j < int(args.NamedChildCount()); j++ {
			arg := args.NamedChild(j)
			if arg.Type() == "constant" || arg.Type() == "scope_resolution" {
				includes = append(includes, arg.Content(src))
			}
		}
	}
	if len(includes) > 0 {
		nd.SetMeta(graph.MetaIncludes, strings.Join(includes, ","))
	}
}

// HandlerTargets maps "people#show" to the show action of
// people_controller.rb and "admin/people#show" to
// admin/people_controller.rb.
func (s *Stack) HandlerTargets(endpoint graph.NodeData) []parser.Target {
	handler := endpoint.MetaValue(graph.MetaHandler)
	ctrl, action, ok := strings.Cut(handler, "#")
	if !ok {
		return []parser.Target{{Name: handler}}
	}
	return []parser.Target{{Name: action, FileSuffix: ctrl + "_controller.rb"}}
}

// isTestFilename returns true if the filename matches Ruby test file patterns.
func isTestFilename(base string) bool {
	if !strings.HasSuffix(base, ".rb") {
		return false
	}
	name := strings.TrimSuffix(base, ".rb")
	return strings.HasSuffix(name, "_spec") ||
		strings.HasSuffix(name, "_test") ||
		strings.HasPrefix(name, "test_")
}

// isRoutesFile checks if this is a Rails routes file.
func isRoutesFile(filePath string) bool {
	base := filepath.Base(filePath)
	return base == "routes.rb" || strings.Contains(filePath, "config/routes")
}
