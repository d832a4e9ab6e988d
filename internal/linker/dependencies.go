package linker

import (
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// externalTarget returns the library function a call reaches through an
// import of a package outside the build, keyed by the import source.
func (l *Linker) externalTarget(res *parser.FileResult, c parser.Call) (graph.NodeData, bool) {
	name, _ := binding(c)
	source, ok := res.ImportMap[name]
	if !ok || source == "" {
		return graph.NodeData{}, false
	}
	if _, relative := importKey(source); relative || l.isLocalSource(source) {
		return graph.NodeData{}, false
	}
	return graph.NodeData{Name: c.Name, File: source}, true
}

// addExternal adds a Uses edge from caller to ext, creating the external
// Function node once per (name, source).
func (l *Linker) addExternal(caller graph.Node, ext graph.NodeData) {
	key := externalKey(ext)
	if !l.external[key] {
		if _, exists := l.g.FindNodeInFile(graph.NodeFunction, ext.Name, ext.File); !exists {
			l.g.AddNode(graph.NodeFunction, ext)
		}
		l.external[key] = true
	}
	l.g.AddEdge(graph.NewEdge(graph.EdgeUses, caller.Type, caller.Data, graph.NodeFunction, ext))
}

func externalKey(nd graph.NodeData) string {
	return nd.File + "\x1f" + nd.Name
}

func (l *Linker) isExternal(nd graph.NodeData) bool {
	return l.external[externalKey(nd)]
}
