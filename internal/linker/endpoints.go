package linker

import (
	"context"
	"fmt"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// addEndpoints ingests endpoints, one per (name, file, verb), and binds
// each to its handler functions. An endpoint may bind several handlers.
func (l *Linker) addEndpoints(results []*parser.FileResult) int {
	resolver, _ := l.stack.(parser.HandlerResolver)
	added := 0
	for _, res := range results {
		for _, ep := range res.Endpoints {
			verb := ep.MetaValue(graph.MetaVerb)
			handler := ep.MetaValue(graph.MetaHandler)
			if handler == "" {
				l.softError(fmt.Sprintf("endpoint %s %s in %s has no handler", verb, ep.Name, ep.File))
				continue
			}
			if _, dup := l.g.FindEndpoint(ep.Name, ep.File, verb); dup {
				continue
			}
			l.g.AddNode(graph.NodeEndpoint, ep)
			added++

			targets := []parser.Target{{Name: parser.LastSegment(handler)}}
			if resolver != nil {
				targets = resolver.HandlerTargets(ep)
			}
			for _, t := range targets {
				for _, fn := range l.findTargets(t, ep.File) {
					l.g.AddEdge(graph.NewEdge(graph.EdgeHandler, graph.NodeEndpoint, ep, graph.NodeFunction, fn))
				}
			}
		}
	}
	return added
}

// renameGroups prefixes the endpoints registered inside a group function
// with the group's path. The function body is re-parsed on its own and
// the endpoint query run against it, so only endpoints it registers are
// renamed.
func (l *Linker) renameGroups(ctx context.Context, results []*parser.FileResult) int {
	renamed := 0
	for _, res := range results {
		for _, group := range res.Groups {
			fnName := group.MetaValue(graph.MetaGroup)
			fns := l.g.FindNodesByName(graph.NodeFunction, fnName)
			if fnName == "" || group.Name == "" || len(fns) == 0 {
				l.log.Debug("endpoint group without function", "group", group.Name, "function", fnName)
				continue
			}
			fn := fns[0]

			tree, err := parser.Parse(ctx, l.stack.Grammar(), []byte(fn.Body))
			if err != nil {
				l.softError(fmt.Sprintf("parse group %s in %s: %v", fnName, fn.File, err))
				continue
			}
			seen := make(map[string]bool)
			for _, ep := range parser.FindEndpoints(l.stack, tree.RootNode(), []byte(fn.Body), fn.File) {
				verb := ep.MetaValue(graph.MetaVerb)
				if seen[verb+" "+ep.Name] {
					continue
				}
				seen[verb+" "+ep.Name] = true
				n, updated := l.renameEndpoint(ep.Name, fn.File, verb, group.Name+ep.Name)
				renamed += n
				if n > 0 && updated == 0 {
					l.softError("missing edge for endpoint " + ep.Name)
				}
			}
			tree.Close()
		}
	}
	return renamed
}

// renameEndpoint renames the Endpoint (name, file, verb), reconciling the
// edge copies that reference it. It returns the number of nodes renamed
// and edge endpoints updated.
func (l *Linker) renameEndpoint(name, file, verb, newName string) (nodes, edges int) {
	if name == newName {
		return 0, 0
	}
	ok, updated := l.g.RenameEndpoint(name, file, verb, newName)
	if !ok {
		return 0, 0
	}
	return 1, updated
}
