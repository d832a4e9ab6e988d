package typescript

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

// IsPageFile is always false; React pages are <Route> elements, not files.
func (s *Stack) IsPageFile(path string) bool {
	return false
}

func (s *Stack) TemplatePage(path string, content []byte) (parser.Page, bool) {
	return parser.Page{}, false
}

// PageFromMatch turns <Route path="/people" element={<People />} /> into a
// page named by its path that renders People. The v5 form
// component={People} is accepted too.
func (s *Stack) PageFromMatch(m *parser.Match, file string) (parser.Page, bool) {
	el := m.Node(parser.CapPage)
	if el == nil {
		return parser.Page{}, false
	}
	var route, component string
	for _, attr := range parser.Descendants(el, "jsx_attribute") {
		if owner := parser.Ancestor(attr, "jsx_self_closing_element", "jsx_opening_element"); owner == nil || owner.StartByte() != el.StartByte() {
			continue
		}
		key, val := attrKeyValue(attr, m.Src)
		switch key {
		case "path":
			if val != nil {
				route = parser.Unquote(val.Content(m.Src))
			}
		case "index":
			if route == "" {
				route = "/"
			}
		case "element", "component", "Component":
			component = renderedComponent(val, m.Src)
		}
	}
	if route == "" {
		return parser.Page{}, false
	}

	page := parser.Page{Node: parser.Record(route, file, el, m.Src)}
	if component != "" {
		page.Node.SetMeta(graph.MetaRenders, component)
		page.Renders = []parser.Target{{Name: component}}
	}
	return page, true
}

func attrKeyValue(attr *sitter.Node, src []byte) (string, *sitter.Node) {
	if attr.NamedChildCount() == 0 {
		return "", nil
	}
	key := attr.NamedChild(0).Content(src)
	if attr.NamedChildCount() < 2 {
		return key, nil
	}
	return key, attr.NamedChild(int(attr.NamedChildCount()) - 1)
}

// renderedComponent returns the component named by an element={<X />} or
// component={X} attribute value.
func renderedComponent(val *sitter.Node, src []byte) string {
	if val == nil {
		return ""
	}
	for _, el := range parser.Descendants(val, "jsx_self_closing_element", "jsx_opening_element") {
		if id := parser.ChildOfType(el, "identifier", "member_expression"); id != nil {
			return parser.LastSegment(id.Content(src))
		}
	}
	if id := parser.ChildOfType(val, "identifier", "member_expression"); id != nil {
		return parser.LastSegment(id.Content(src))
	}
	return ""
}
