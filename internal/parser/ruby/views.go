package ruby

import (
	"path"
	"strings"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
	"github.com/imyousuf/codegraph/internal/parser/html"
)

var viewExtensions = []string{".erb", ".haml", ".slim"}

// IsPageFile reports whether p is a view template.
func (s *Stack) IsPageFile(p string) bool {
	for _, ext := range viewExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// TemplatePage turns app/views/<ctrl>/<action>.html.erb into a Page that
// renders <action> of <ctrl>_controller.rb. Partials and layouts render
// nothing.
func (s *Stack) TemplatePage(p string, content []byte) (parser.Page, bool) {
	base := path.Base(p)
	page := parser.Page{Node: graph.NodeData{
		Name: base,
		File: p,
		End:  strings.Count(string(content), "\n"),
		Body: string(content),
	}}
	if links := html.Scan(content).Targets(); len(links) > 0 {
		page.Node.SetMeta(graph.MetaLinks, strings.Join(links, ","))
	}

	_, rel, ok := strings.Cut(p, "views/")
	if !ok {
		return page, true
	}
	ctrl := path.Dir(rel)
	action, _, _ := strings.Cut(base, ".")
	if ctrl == "." || strings.HasPrefix(ctrl, "layouts") || strings.HasPrefix(action, "_") {
		return page, true
	}
	page.Node.SetMeta(graph.MetaRenders, action)
	page.Renders = []parser.Target{{Name: action, FileSuffix: ctrl + "_controller.rb"}}
	return page, true
}

// PageFromMatch is unused for Ruby; views are whole files.
func (s *Stack) PageFromMatch(m *parser.Match, file string) (parser.Page, bool) {
	return parser.Page{}, false
}
