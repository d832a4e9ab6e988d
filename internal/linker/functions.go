package linker

import (
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// addFunctions ingests every extracted function with its method-of,
// return-type and outbound request edges.
func (l *Linker) addFunctions(results []*parser.FileResult) int {
	added := 0
	for _, res := range results {
		for _, fn := range res.Functions {
			nd := fn.Node
			l.g.AddNodeWithParent(graph.NodeFunction, nd, graph.NodeFile, nd.File)
			added++

			if op := nd.MetaValue(graph.MetaOperand); op != "" {
				if cls, ok := l.findClass(op, nd.File); ok {
					et := graph.EdgeOperand
					if cls.MetaValue(graph.MetaInterface) == "true" {
						et = graph.EdgeImplements
					}
					l.g.AddEdge(graph.NewEdge(et, graph.NodeClass, cls, graph.NodeFunction, nd))
				}
			}

			for _, rt := range fn.ReturnTypes {
				if nt, target, ok := l.findType(rt, nd.File); ok {
					l.g.AddEdge(graph.ContainsEdge(graph.NodeFunction, nd, nt, target))
				}
			}

			// Call sites are recorded without a receiver.
			for _, req := range fn.Requests {
				l.g.AddNode(graph.NodeRequest, req)
				l.g.AddEdge(graph.CallsEdge(graph.NodeFunction, nd, graph.NodeRequest, req, graph.CallsMeta{
					CallStart: req.Start,
					CallEnd:   req.End,
				}))
				added++
			}
		}
	}
	return added
}

// addPages ingests pages and binds each to the functions it renders.
func (l *Linker) addPages(results []*parser.FileResult) int {
	added := 0
	for _, res := range results {
		for _, page := range res.Pages {
			l.g.AddNode(graph.NodePage, page.Node)
			added++
			for _, t := range page.Renders {
				for _, fn := range l.findTargets(t, page.Node.File) {
					l.g.AddEdge(graph.NewEdge(graph.EdgeRenders, graph.NodePage, page.Node, graph.NodeFunction, fn))
				}
			}
		}
	}
	return added
}

// findClass resolves a class by name, preferring one defined in file.
// Qualified names (Admin::User, models.User) resolve by their last
// segment.
func (l *Linker) findClass(name, file string) (graph.NodeData, bool) {
	name = parser.LastSegment(name)
	if name == "" {
		return graph.NodeData{}, false
	}
	if nd, ok := l.g.FindNodeInFile(graph.NodeClass, name, file); ok {
		return nd, true
	}
	if found := l.g.FindNodesByName(graph.NodeClass, name); len(found) > 0 {
		return found[0], true
	}
	return graph.NodeData{}, false
}

// findType resolves a declared type to a DataModel, or failing that a
// Class.
func (l *Linker) findType(name, file string) (graph.NodeType, graph.NodeData, bool) {
	name = parser.LastSegment(name)
	if nd, ok := l.g.FindNodeInFile(graph.NodeDataModel, name, file); ok {
		return graph.NodeDataModel, nd, true
	}
	if found := l.g.FindNodesByName(graph.NodeDataModel, name); len(found) > 0 {
		return graph.NodeDataModel, found[0], true
	}
	if nd, ok := l.findClass(name, file); ok {
		return graph.NodeClass, nd, true
	}
	return "", graph.NodeData{}, false
}

// findTargets resolves a target to functions. A file suffix restricts the
// search to matching files; otherwise a function in the referencing file
// wins over one defined elsewhere.
func (l *Linker) findTargets(t parser.Target, file string) []graph.NodeData {
	if t.Name == "" {
		return nil
	}
	if t.FileSuffix != "" {
		if nd, ok := l.g.FindNodeByNameFileSuffix(graph.NodeFunction, t.Name, t.FileSuffix); ok {
			return []graph.NodeData{nd}
		}
		return nil
	}
	if nd, ok := l.g.FindNodeInFile(graph.NodeFunction, t.Name, file); ok {
		return []graph.NodeData{nd}
	}
	for _, nd := range l.g.FindNodesByName(graph.NodeFunction, t.Name) {
		if !l.isExternal(nd) {
			return []graph.NodeData{nd}
		}
	}
	return nil
}
