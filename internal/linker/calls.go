package linker

import (
	"strings"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// selfReceivers name the enclosing object in the supported languages.
var selfReceivers = map[string]bool{"self": true, "this": true, "super": true, "cls": true}

// linkCalls resolves the call sites of functions and tests. Calls to local
// functions become Calls edges from the caller; calls to names imported
// from a library become Uses edges to an external Function node. Anything
// else is dropped.
func (l *Linker) linkCalls(results []*parser.FileResult) int {
	linked := 0
	for _, res := range results {
		for _, c := range res.Calls {
			if c.Source.Data.Name == "" {
				continue
			}
			if target, ok := l.resolveCall(res, c); ok {
				l.g.AddEdge(graph.CallsEdge(c.Source.Type, c.Source.Data, graph.NodeFunction, target, graph.CallsMeta{
					CallStart: c.Start,
					CallEnd:   c.End,
					Operand:   c.Operand,
				}))
				linked++
				continue
			}
			if ext, ok := l.externalTarget(res, c); ok {
				l.addExternal(c.Source, ext)
				linked++
			}
		}
	}
	return linked
}

// binding returns the identifier whose import decides where a call goes:
// the receiver's root for qualified calls, the callee otherwise.
func binding(c parser.Call) (name string, qualified bool) {
	operand := strings.TrimPrefix(c.Operand, "@")
	if operand == "" {
		return c.Name, false
	}
	root, _, _ := strings.Cut(operand, ".")
	if selfReceivers[root] {
		return c.Name, false
	}
	return root, true
}

// resolveCall finds the local function a call targets. Unqualified calls
// prefer a method of the caller's class, then the caller's file, then the
// file the name was imported from, then a unique definition anywhere.
// Qualified calls resolve through a class name, an imported module or the
// caller's own receiver.
func (l *Linker) resolveCall(res *parser.FileResult, c parser.Call) (graph.NodeData, bool) {
	cands := l.localFunctions(c.Name)
	if len(cands) == 0 {
		return graph.NodeData{}, false
	}
	name, qualified := binding(c)
	source, imported := res.ImportMap[name]
	if imported && !l.isLocalSource(source) {
		return graph.NodeData{}, false
	}
	callerClass := c.Source.Data.MetaValue(graph.MetaOperand)

	if !qualified {
		if callerClass != "" {
			if nd, ok := pick(cands, func(nd graph.NodeData) bool {
				return nd.MetaValue(graph.MetaOperand) == callerClass && nd.File == res.Path
			}); ok {
				return nd, true
			}
		}
		if nd, ok := pick(cands, func(nd graph.NodeData) bool { return nd.File == res.Path }); ok {
			return nd, true
		}
		if imported {
			if nd, ok := l.pickFromSource(cands, source); ok {
				return nd, true
			}
		}
		if len(cands) == 1 {
			return cands[0], true
		}
		return graph.NodeData{}, false
	}

	operand := strings.TrimPrefix(c.Operand, "@")
	cls := parser.LastSegment(operand)
	if nd, ok := pick(cands, func(nd graph.NodeData) bool { return nd.MetaValue(graph.MetaOperand) == cls }); ok {
		return nd, true
	}
	if imported {
		return l.pickFromSource(cands, source)
	}
	// A receiver variable of the caller's own type, as in Go's p.validate().
	if callerClass != "" && !strings.Contains(operand, ".") {
		return pick(cands, func(nd graph.NodeData) bool {
			return nd.MetaValue(graph.MetaOperand) == callerClass && nd.File == res.Path
		})
	}
	return graph.NodeData{}, false
}

func (l *Linker) pickFromSource(cands []graph.NodeData, source string) (graph.NodeData, bool) {
	files := l.sourceFiles(source)
	return pick(cands, func(nd graph.NodeData) bool {
		for _, f := range files {
			if nd.File == f {
				return true
			}
		}
		return false
	})
}

func pick(cands []graph.NodeData, match func(graph.NodeData) bool) (graph.NodeData, bool) {
	for _, nd := range cands {
		if match(nd) {
			return nd, true
		}
	}
	return graph.NodeData{}, false
}

// localFunctions returns the functions called name, excluding external
// library functions.
func (l *Linker) localFunctions(name string) []graph.NodeData {
	var out []graph.NodeData
	for _, nd := range l.g.FindNodesByName(graph.NodeFunction, name) {
		if !l.isExternal(nd) {
			out = append(out, nd)
		}
	}
	return out
}
