package parser

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser/manifest"
)

// ImportNodeName is the name of the per-file Import node.
const ImportNodeName = "imports"

// Extract parses one file and runs every query of stack against it.
// Package manifests yield Library records and template pages yield Page
// records without a parse. The returned error is a soft per-file failure.
func Extract(ctx context.Context, stack Stack, file SourceFile) (*FileResult, error) {
	res := &FileResult{
		Path:     file.Path,
		Language: stack.Language(),
		Lines:    countLines(file.Content),
	}

	if IsPackageFile(stack, file.Path) {
		libs, err := manifest.Libraries(file.Path, file.Content)
		if err != nil {
			return res, fmt.Errorf("parsing %s: %w", file.Path, err)
		}
		res.Libraries = libs
		return res, nil
	}
	if pf, ok := stack.(PageFinder); ok && pf.IsPageFile(file.Path) {
		if page, ok := pf.TemplatePage(file.Path, file.Content); ok {
			res.Pages = append(res.Pages, page)
		}
		return res, nil
	}

	tree, err := Parse(ctx, stack.Grammar(), file.Content)
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", file.Path, err)
	}
	defer tree.Close()

	e := &extractor{
		stack:  stack,
		q:      stack.Queries(),
		file:   file.Path,
		src:    file.Content,
		res:    res,
		scopes: make(map[span]graph.Node),
	}
	e.extract(tree.RootNode())
	return res, nil
}

// IsPackageFile reports whether path is one of stack's library manifests.
func IsPackageFile(stack Stack, p string) bool {
	base := path.Base(p)
	for _, pf := range stack.PackageFiles() {
		if base == pf {
			return true
		}
	}
	return false
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

type span struct {
	start, end uint32
}

func spanOf(n *sitter.Node) span {
	return span{start: n.StartByte(), end: n.EndByte()}
}

// extractor runs a stack's queries over one syntax tree.
type extractor struct {
	stack Stack
	q     *Queries
	file  string
	src   []byte
	res   *FileResult

	// Function and test definitions by byte span; calls and requests are
	// attributed to the innermost enclosing one.
	scopes map[span]graph.Node
	fnIdx  map[span]int
}

func (e *extractor) extract(root *sitter.Node) {
	e.extractImports(root)
	e.extractClasses(root)
	e.extractDataModels(root)
	e.extractFunctions(root)
	e.extractTests(root)
	e.extractRequests(root)
	e.extractCalls(root)
	e.extractEndpoints(root)
	e.extractGroups(root)
	e.extractInstances(root)
	e.extractPages(root)
}

func (e *extractor) extractImports(root *sitter.Node) {
	seen := make(map[span]bool)
	var bodies []string
	var sources []string
	imported := make(map[string]string)
	start, end := -1, 0

	resolver, _ := e.stack.(ImportResolver)
	for _, m := range Matches(e.q.Imports, root, e.src) {
		n := m.Node(CapImports)
		if n == nil || seen[spanOf(n)] {
			continue
		}
		seen[spanOf(n)] = true
		bodies = append(bodies, n.Content(e.src))
		if start < 0 {
			start = int(n.StartPoint().Row)
		}
		end = int(n.EndPoint().Row)
		if resolver == nil {
			continue
		}
		for name, source := range resolver.ImportedNames(n, e.src) {
			imported[name] = source
			sources = append(sources, source)
		}
	}
	if len(bodies) == 0 {
		return
	}

	nd := graph.NodeData{
		Name:  ImportNodeName,
		File:  e.file,
		Start: start,
		End:   end,
		Body:  strings.Join(bodies, "\n"),
	}
	if len(sources) > 0 {
		nd.SetMeta(graph.MetaSource, graph.JoinList(sources))
	}
	e.res.Import = &nd
	e.res.ImportMap = imported
}

func (e *extractor) extractClasses(root *sitter.Node) {
	seen := make(map[span]bool)
	annotator, _ := e.stack.(ClassAnnotator)
	for _, m := range Matches(e.q.Classes, root, e.src) {
		def := m.Node(CapClassDefinition)
		name := m.Text(CapClassName)
		if def == nil || name == "" || seen[spanOf(def)] {
			continue
		}
		seen[spanOf(def)] = true

		nd := Record(name, e.file, def, e.src)
		if parent := m.Text(CapClassParent); parent != "" {
			nd.SetMeta(graph.MetaParent, parent)
		}
		if annotator != nil {
			annotator.AnnotateClass(def, e.src, &nd)
		}
		e.res.Classes = append(e.res.Classes, nd)
	}
}

func (e *extractor) extractDataModels(root *sitter.Node) {
	seen := make(map[span]bool)
	for _, m := range Matches(e.q.DataModels, root, e.src) {
		def := m.Node(CapDataModel)
		name := m.Text(CapDataModelName)
		if def == nil || name == "" || seen[spanOf(def)] {
			continue
		}
		seen[spanOf(def)] = true
		e.res.DataModels = append(e.res.DataModels, Record(name, e.file, def, e.src))
	}
}

func (e *extractor) extractFunctions(root *sitter.Node) {
	e.fnIdx = make(map[span]int)
	annotator, _ := e.stack.(FunctionAnnotator)
	for _, m := range Matches(e.q.Functions, root, e.src) {
		def := m.Node(CapFunctionDefinition)
		name := m.Text(CapFunctionName)
		if def == nil || name == "" {
			continue
		}
		if _, seen := e.scopes[spanOf(def)]; seen {
			continue
		}

		nd := Record(name, e.file, def, e.src)
		if e.stack.IsTest(name, e.file) {
			e.addTest(nd)
			e.scopes[spanOf(def)] = e.res.Tests[len(e.res.Tests)-1]
			continue
		}
		if operand := e.stack.FindFunctionParent(def, e.src); operand != "" {
			nd.SetMeta(graph.MetaOperand, operand)
		}
		if annotator != nil {
			annotator.AnnotateFunction(def, e.src, &nd)
		}

		e.res.Functions = append(e.res.Functions, Function{
			Node:        nd,
			ReturnTypes: returnTypes(def, e.src),
		})
		e.fnIdx[spanOf(def)] = len(e.res.Functions) - 1
		e.scopes[spanOf(def)] = graph.Node{Type: graph.NodeFunction, Data: nd}
	}
}

// returnTypes collects the type names in a function's declared result.
func returnTypes(def *sitter.Node, src []byte) []string {
	rt := def.ChildByFieldName("return_type")
	if rt == nil {
		rt = def.ChildByFieldName("result")
	}
	if rt == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, n := range Descendants(rt, "type_identifier", "identifier", "constant") {
		name := n.Content(src)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (e *extractor) addTest(nd graph.NodeData) {
	kind := graph.NodeTest
	if c, ok := e.stack.(TestClassifier); ok {
		kind = c.TestKind(nd.Name, e.file)
	}
	switch kind {
	case graph.NodeIntegrationTest:
		if strings.Contains(e.file, "e2e") {
			nd.SetMeta(graph.MetaTestKind, "e2e")
		} else {
			nd.SetMeta(graph.MetaTestKind, "integration")
		}
	default:
		if nd.MetaValue(graph.MetaTestKind) == "" {
			nd.SetMeta(graph.MetaTestKind, "unit")
		}
	}
	e.res.Tests = append(e.res.Tests, graph.Node{Type: kind, Data: nd})
}

func (e *extractor) extractTests(root *sitter.Node) {
	for _, m := range Matches(e.q.Tests, root, e.src) {
		def := m.Node(CapTest)
		name := Unquote(m.Text(CapTestName))
		if def == nil || name == "" {
			continue
		}
		if _, seen := e.scopes[spanOf(def)]; seen {
			continue
		}
		e.addTest(Record(name, e.file, def, e.src))
		e.scopes[spanOf(def)] = e.res.Tests[len(e.res.Tests)-1]
	}
}

// enclosing returns the innermost function or test containing n.
func (e *extractor) enclosing(n *sitter.Node) (graph.Node, span, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s, ok := e.scopes[spanOf(p)]; ok {
			return s, spanOf(p), true
		}
	}
	return graph.Node{}, span{}, false
}

func (e *extractor) extractRequests(root *sitter.Node) {
	seen := make(map[span]bool)
	expander, _ := e.stack.(RequestExpander)
	for _, m := range Matches(e.q.Requests, root, e.src) {
		n := m.Node(CapRequest)
		if n == nil || seen[spanOf(n)] {
			continue
		}
		seen[spanOf(n)] = true

		_, sp, ok := e.enclosing(n)
		idx, isFn := e.fnIdx[sp]
		if !ok || !isFn {
			continue
		}

		if expander != nil {
			if nd, ok := expander.ExpandRequest(m, e.file); ok {
				e.res.Functions[idx].Requests = append(e.res.Functions[idx].Requests, nd)
			}
			continue
		}

		var route string
		if rn := m.Node(CapRoute); rn != nil {
			route = rn.Content(e.src)
			if s := FirstString(rn); s != nil {
				route = Unquote(s.Content(e.src))
			}
		} else if s := FirstString(ChildOfType(n, "arguments", "argument_list")); s != nil {
			route = Unquote(s.Content(e.src))
		}
		if route == "" {
			route = n.Content(e.src)
		}
		nd := Record(route, e.file, n, e.src)
		nd.SetMeta(graph.MetaVerb, requestVerb(m, n, e.src))
		e.res.Functions[idx].Requests = append(e.res.Functions[idx].Requests, nd)
	}
}

// requestVerb takes the verb from the call name, then from a method option
// or verb literal among the arguments, and defaults to GET.
func requestVerb(m *Match, n *sitter.Node, src []byte) string {
	if v := VerbFromName(m.Text(CapVerb)); v != "" {
		return v
	}
	for _, opt := range Descendants(n, "pair", "keyword_argument") {
		key := opt.NamedChild(0)
		if key == nil || Unquote(key.Content(src)) != "method" || opt.NamedChildCount() < 2 {
			continue
		}
		if v := VerbFromName(opt.NamedChild(int(opt.NamedChildCount()) - 1).Content(src)); v != "" {
			return v
		}
	}
	args := ChildOfType(n, "arguments", "argument_list")
	for i := 0; args != nil && i < int(args.NamedChildCount()); i++ {
		if v := VerbFromName(args.NamedChild(i).Content(src)); v != "" {
			return v
		}
	}
	return "GET"
}

func (e *extractor) extractCalls(root *sitter.Node) {
	index := make(map[span]int)
	namer, _ := e.stack.(CallNamer)
	for _, m := range Matches(e.q.Calls, root, e.src) {
		n := m.Node(CapFunctionCall)
		if n == nil {
			continue
		}
		name, operand := m.Text(CapFunctionName), m.Text(CapOperand)
		if name == "" && namer != nil {
			name, operand = namer.CallName(n, e.src)
		}
		if name == "" {
			continue
		}
		if i, seen := index[spanOf(n)]; seen {
			if e.res.Calls[i].Operand == "" {
				e.res.Calls[i].Operand = operand
			}
			continue
		}
		source, _, ok := e.enclosing(n)
		if !ok {
			continue
		}
		index[spanOf(n)] = len(e.res.Calls)
		e.res.Calls = append(e.res.Calls, Call{
			Source:  source,
			Name:    name,
			Operand: operand,
			Start:   int(n.StartPoint().Row),
			End:     int(n.EndPoint().Row),
		})
	}
}

func (e *extractor) extractEndpoints(root *sitter.Node) {
	e.res.Endpoints = FindEndpoints(e.stack, root, e.src, e.file)
}

// FindEndpoints runs the stack's endpoint query over root. It is shared by
// file extraction and by group resolution, which re-runs it on a single
// function body.
func FindEndpoints(stack Stack, root *sitter.Node, src []byte, file string) []graph.NodeData {
	expander, _ := stack.(EndpointExpander)
	seen := make(map[string]bool)
	var out []graph.NodeData
	for _, m := range Matches(stack.Queries().Endpoints, root, src) {
		var recs []graph.NodeData
		if expander != nil {
			recs = expander.ExpandEndpoint(m, file)
		} else if rec, ok := defaultEndpoint(m, file); ok {
			recs = []graph.NodeData{rec}
		}
		for _, rec := range recs {
			key := fmt.Sprintf("%s\x1f%s\x1f%d", rec.Name, rec.MetaValue(graph.MetaVerb), rec.Start)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}

func defaultEndpoint(m *Match, file string) (graph.NodeData, bool) {
	route := Unquote(m.Text(CapRoute))
	if route == "" {
		return graph.NodeData{}, false
	}
	nd := Record(route, file, m.Node(CapEndpoint), m.Src)
	if verb := VerbFromName(m.Text(CapVerb)); verb != "" {
		nd.SetMeta(graph.MetaVerb, verb)
	}
	if handler := m.Text(CapHandler); handler != "" {
		nd.SetMeta(graph.MetaHandler, handler)
	}
	return nd, true
}

func (e *extractor) extractGroups(root *sitter.Node) {
	for _, m := range Matches(e.q.EndpointGroups, root, e.src) {
		prefix := Unquote(m.Text(CapRoute))
		fn := m.Text(CapGroup)
		if prefix == "" || fn == "" {
			continue
		}
		nd := Record(prefix, e.file, m.Node(CapEndpointGroup), e.src)
		nd.SetMeta(graph.MetaGroup, LastSegment(fn))
		e.res.Groups = append(e.res.Groups, nd)
	}
}

func (e *extractor) extractInstances(root *sitter.Node) {
	seen := make(map[span]bool)
	for _, m := range Matches(e.q.Instances, root, e.src) {
		n := m.Node(CapInstance)
		name := m.Text(CapInstanceName)
		if n == nil || name == "" || seen[spanOf(n)] {
			continue
		}
		seen[spanOf(n)] = true
		nd := Record(name, e.file, n, e.src)
		nd.DataType = LastSegment(m.Text(CapInstanceType))
		e.res.Instances = append(e.res.Instances, nd)
	}
}

func (e *extractor) extractPages(root *sitter.Node) {
	pf, ok := e.stack.(PageFinder)
	if !ok {
		return
	}
	for _, m := range Matches(e.q.Pages, root, e.src) {
		if page, ok := pf.PageFromMatch(m, e.file); ok {
			e.res.Pages = append(e.res.Pages, page)
		}
	}
}
