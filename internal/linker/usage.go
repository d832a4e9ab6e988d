package linker

import (
	"context"
	"strconv"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// linkDataModelUsage adds a Contains edge from each function to every data
// model its body mentions. Bodies are parsed once per function; the names
// they mention are cached.
func (l *Linker) linkDataModelUsage(ctx context.Context) int {
	q := l.stack.Queries().DataModelUsage
	models := l.g.FindNodesByType(graph.NodeDataModel)
	if q == nil || len(models) == 0 {
		return 0
	}
	linked := 0
	for _, fn := range l.g.FindNodesByType(graph.NodeFunction) {
		if fn.Body == "" || l.isExternal(fn) {
			continue
		}
		names, err := l.usedNames(ctx, fn)
		if err != nil {
			l.softError("parse body of " + fn.Name + " in " + fn.File + ": " + err.Error())
			continue
		}
		for _, dm := range models {
			if !names[dm.Name] || l.hasContains(fn, dm) {
				continue
			}
			l.g.AddEdge(graph.ContainsEdge(graph.NodeFunction, fn, graph.NodeDataModel, dm))
			linked++
		}
	}
	return linked
}

func (l *Linker) usedNames(ctx context.Context, fn graph.NodeData) (map[string]bool, error) {
	key := fn.File + "\x1f" + fn.Name + "\x1f" + strconv.Itoa(fn.Start)
	if names, ok := l.usage.Get(key); ok {
		return names, nil
	}
	src := []byte(fn.Body)
	tree, err := parser.Parse(ctx, l.stack.Grammar(), src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	names := make(map[string]bool)
	for _, m := range parser.Matches(l.stack.Queries().DataModelUsage, tree.RootNode(), src) {
		if name := m.Text(parser.CapDataModelName); name != "" {
			names[name] = true
		}
	}
	l.usage.Add(key, names)
	return names, nil
}

func (l *Linker) hasContains(fn, dm graph.NodeData) bool {
	for _, e := range l.g.OutgoingEdges(graph.NodeFunction, fn.Name, fn.File, graph.EdgeContains) {
		if e.Target.Type == graph.NodeDataModel && e.Target.Data.Name == dm.Name && e.Target.Data.File == dm.File {
			return true
		}
	}
	return false
}
