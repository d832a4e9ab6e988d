package linker

import (
	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// linkInheritance adds a ParentOf edge from each class's superclass to the
// class. Parents that were never extracted (framework base classes) are
// skipped.
func (l *Linker) linkInheritance() int {
	linked := 0
	for _, cls := range l.g.FindNodesByType(graph.NodeClass) {
		parent := cls.MetaValue(graph.MetaParent)
		if parent == "" {
			continue
		}
		p, ok := l.findClass(parent, cls.File)
		if !ok || (p.Name == cls.Name && p.File == cls.File) {
			continue
		}
		l.g.AddEdge(graph.NewEdge(graph.EdgeParentOf, graph.NodeClass, p, graph.NodeClass, cls))
		linked++
	}
	return linked
}

// linkMixins adds a ClassImports edge from a class to every included
// module and implemented interface that resolves to a class.
func (l *Linker) linkMixins() int {
	linked := 0
	for _, cls := range l.g.FindNodesByType(graph.NodeClass) {
		names := graph.SplitList(cls.MetaValue(graph.MetaIncludes))
		names = append(names, graph.SplitList(cls.MetaValue(graph.MetaImplements))...)
		for _, name := range names {
			m, ok := l.findClass(name, cls.File)
			if !ok {
				continue
			}
			l.g.AddEdge(graph.NewEdge(graph.EdgeClassImports, graph.NodeClass, cls, graph.NodeClass, m))
			linked++
		}
	}
	return linked
}

// addInstances ingests instances whose declared type is a known class,
// with an Of edge to that class.
func (l *Linker) addInstances(results []*parser.FileResult) int {
	added := 0
	for _, res := range results {
		for _, inst := range res.Instances {
			if inst.DataType == "" {
				continue
			}
			cls, ok := l.findClass(inst.DataType, inst.File)
			if !ok {
				continue
			}
			l.g.AddNodeWithParent(graph.NodeInstance, inst, graph.NodeFile, inst.File)
			l.g.AddEdge(graph.NewEdge(graph.EdgeOf, graph.NodeInstance, inst, graph.NodeClass, cls))
			added++
		}
	}
	return added
}
