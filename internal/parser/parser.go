package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
)

// Language represents a supported language stack.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangRuby       Language = "ruby"
	LangTypeScript Language = "typescript"
	LangReact      Language = "react"
	LangSwift      Language = "swift"
)

// FileExtensions maps each language to its recognized file extensions.
var FileExtensions = map[Language][]string{
	LangGo:         {".go"},
	LangPython:     {".py"},
	LangRuby:       {".rb", ".erb", ".haml", ".slim"},
	LangTypeScript: {".ts", ".js", ".mjs", ".cjs"},
	LangReact:      {".tsx", ".jsx", ".ts", ".js"},
	LangSwift:      {".swift"},
}

// PackageFiles maps each language to the manifest files that declare its
// libraries.
var PackageFiles = map[Language][]string{
	LangGo:         {"go.mod"},
	LangPython:     {"pyproject.toml", "requirements.txt"},
	LangRuby:       {"Gemfile"},
	LangTypeScript: {"package.json"},
	LangReact:      {"package.json"},
	LangSwift:      {"Package.swift"},
}

// Capture names shared by every language's queries.
const (
	CapImports            = "imports"
	CapClassDefinition    = "class-definition"
	CapClassName          = "class-name"
	CapClassParent        = "class-parent"
	CapFunctionDefinition = "function-definition"
	CapFunctionName       = "function-name"
	CapFunctionCall       = "function-call"
	CapOperand            = "operand"
	CapEndpoint           = "endpoint"
	CapEndpointGroup      = "endpoint-group"
	CapRoute              = "route"
	CapVerb               = "verb"
	CapHandler            = "handler"
	CapGroup              = "group"
	CapDataModel          = "data-model"
	CapDataModelName      = "data-model-name"
	CapInstance           = "instance"
	CapInstanceName       = "instance-name"
	CapInstanceType       = "instance-type"
	CapRequest            = "request"
	CapPage               = "page"
	CapTest               = "test"
	CapTestName           = "test-name"
)

// Queries holds a language's compiled patterns. A nil query means the
// language has no such construct.
type Queries struct {
	Imports        *sitter.Query
	Classes        *sitter.Query
	Functions      *sitter.Query
	Calls          *sitter.Query
	Endpoints      *sitter.Query
	EndpointGroups *sitter.Query
	DataModels     *sitter.Query
	DataModelUsage *sitter.Query
	Instances      *sitter.Query
	Requests       *sitter.Query
	Pages          *sitter.Query
	Tests          *sitter.Query
}

// Stack is the capability contract each language implements. The
// extraction pipeline and the linker are otherwise language-agnostic.
type Stack interface {
	// Language returns which language this stack handles.
	Language() Language

	// Grammar returns the tree-sitter grammar used to parse source files.
	Grammar() *sitter.Language

	// Extensions returns the file extensions this stack claims.
	Extensions() []string

	// PackageFiles returns the manifest base names that declare libraries.
	PackageFiles() []string

	// Queries returns the compiled patterns.
	Queries() *Queries

	// FindFunctionParent returns the name of the class or type a function
	// belongs to, or "" when it is not a method.
	FindFunctionParent(fn *sitter.Node, src []byte) string

	// IsTest reports whether a function is a test.
	IsTest(name, file string) bool
}

// EndpointExpander turns one endpoint match into endpoint records. Stacks
// without it get one record per match built from the route, verb and
// handler captures.
type EndpointExpander interface {
	ExpandEndpoint(m *Match, file string) []graph.NodeData
}

// RequestExpander builds the record of one outbound request match, or
// reports false to drop it. Stacks without it take the route from the
// first string argument and the verb from the call or its options.
type RequestExpander interface {
	ExpandRequest(m *Match, file string) (graph.NodeData, bool)
}

// HandlerResolver maps an endpoint's handler reference to functions.
type HandlerResolver interface {
	HandlerTargets(endpoint graph.NodeData) []Target
}

// PageFinder discovers UI pages, either as whole template files or as
// matches of the Pages query.
type PageFinder interface {
	IsPageFile(path string) bool
	TemplatePage(path string, content []byte) (Page, bool)
	PageFromMatch(m *Match, file string) (Page, bool)
}

// ClassAnnotator adds language-specific metadata (mixins, interfaces) to a
// class record.
type ClassAnnotator interface {
	AnnotateClass(def *sitter.Node, src []byte, nd *graph.NodeData)
}

// FunctionAnnotator adds language-specific metadata to a function record.
type FunctionAnnotator interface {
	AnnotateFunction(def *sitter.Node, src []byte, nd *graph.NodeData)
}

// CallNamer extracts the callee and receiver of a call node for stacks
// whose call patterns do not capture them.
type CallNamer interface {
	CallName(call *sitter.Node, src []byte) (name, operand string)
}

// ImportResolver maps the identifiers bound by one import statement to
// their import source.
type ImportResolver interface {
	ImportedNames(stmt *sitter.Node, src []byte) map[string]string
}

// TestClassifier decides whether a test is a unit or an integration test.
type TestClassifier interface {
	TestKind(name, file string) graph.NodeType
}

// Target names a function to bind to. An empty FileSuffix prefers the
// referencing file, then any file.
type Target struct {
	Name       string
	FileSuffix string
}

// SourceFile is one input file.
type SourceFile struct {
	Path    string
	Content []byte
}

// Function is an extracted function. ReturnTypes holds the type names
// mentioned in its declared result; the linker resolves them.
type Function struct {
	Node        graph.NodeData
	ReturnTypes []string
	Requests    []graph.NodeData
}

// Call is an extracted call site. Source is the enclosing function or test.
type Call struct {
	Source  graph.Node
	Name    string
	Operand string
	Start   int
	End     int
}

// Page is an extracted UI page and the functions it renders.
type Page struct {
	Node    graph.NodeData
	Renders []Target
}

// FileResult is the bag of records extracted from one file.
type FileResult struct {
	Path       string
	Language   Language
	Lines      int
	Import     *graph.NodeData
	ImportMap  map[string]string
	Libraries  []graph.NodeData
	Classes    []graph.NodeData
	DataModels []graph.NodeData
	Functions  []Function
	Tests      []graph.Node
	Calls      []Call
	Endpoints  []graph.NodeData
	Groups     []graph.NodeData
	Instances  []graph.NodeData
	Pages      []Page
	Errors     []string
}
