package linker

import (
	"regexp"
	"strings"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// pathLiteral matches quoted strings that look like request paths.
var pathLiteral = regexp.MustCompile("[\"'`](/[^\"'`\\s]*)[\"'`]")

// linkIntegrationTests adds a Calls edge from each integration test to every
// endpoint whose route matches a path literal in the test body. Parameters
// on either side match any single segment.
func (l *Linker) linkIntegrationTests(results []*parser.FileResult) int {
	endpoints := l.g.FindNodesByType(graph.NodeEndpoint)
	if len(endpoints) == 0 {
		return 0
	}
	linked := 0
	for _, res := range results {
		for _, t := range res.Tests {
			if t.Type != graph.NodeIntegrationTest {
				continue
			}
			literals := testPaths(t.Data.Body)
			for _, ep := range endpoints {
				for _, lit := range literals {
					if !pathMatches(ep.Name, lit) {
						continue
					}
					l.g.AddEdge(graph.CallsEdge(graph.NodeIntegrationTest, t.Data, graph.NodeEndpoint, ep, graph.CallsMeta{
						CallStart: t.Data.Start,
						CallEnd:   t.Data.End,
					}))
					linked++
					break
				}
			}
		}
	}
	return linked
}

func testPaths(body string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range pathLiteral.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// pathMatches compares a route with a concrete or templated path segment
// by segment.
func pathMatches(route, literal string) bool {
	a := strings.Split(graph.NormalizePath(route), "/")
	b := strings.Split(graph.NormalizePath(literal), "/")
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] || a[i] == ":param" || b[i] == ":param" {
			continue
		}
		return false
	}
	return true
}
