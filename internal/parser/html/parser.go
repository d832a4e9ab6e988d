package html

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Form is a form element found in a template.
type Form struct {
	Method string
	Action string
}

// Template summarizes the outbound references of one view template.
type Template struct {
	Links    []string
	Forms    []Form
	Scripts  []string
	Partials []string
}

// Targets returns the hrefs and form actions of the template, deduplicated
// in document order.
func (t *Template) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, l := range t.Links {
		add(l)
	}
	for _, f := range t.Forms {
		add(f.Action)
	}
	return out
}

// Scan extracts links, forms, scripts and render directives from an HTML
// or ERB template. Embedded template tags are tolerated by the HTML
// tokenizer and matched separately.
func Scan(content []byte) *Template {
	t := &Template{}
	if doc, err := html.Parse(strings.NewReader(string(content))); err == nil {
		t.walk(doc)
	}
	for _, m := range erbLinkRe.FindAllStringSubmatch(string(content), -1) {
		t.Links = append(t.Links, m[1])
	}
	for _, m := range erbRenderRe.FindAllStringSubmatch(string(content), -1) {
		t.Partials = append(t.Partials, m[1])
	}
	return t
}

func (t *Template) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "a":
			if href := getAttr(n, "href"); isPath(href) {
				t.Links = append(t.Links, href)
			}
		case "form":
			if action := getAttr(n, "action"); isPath(action) {
				method := strings.ToUpper(getAttr(n, "method"))
				if method == "" {
					method = "GET"
				}
				t.Forms = append(t.Forms, Form{Method: method, Action: action})
			}
		case "script":
			if src := getAttr(n, "src"); src != "" {
				t.Scripts = append(t.Scripts, src)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.walk(c)
	}
}

// isPath rejects empty, fragment-only and embedded-template attribute values.
func isPath(v string) bool {
	return v != "" && !strings.HasPrefix(v, "#") && !strings.Contains(v, "<%")
}

// ERB directives: <%= link_to "Show", "/people/1" %>, <%= render "form" %>
var (
	erbLinkRe   = regexp.MustCompile(`<%=?\s*link_to\s*\(?\s*[^,]+,\s*["']([^"']+)["']`)
	erbRenderRe = regexp.MustCompile(`<%=?\s*render\s*\(?\s*(?:partial:\s*)?["']([^"']+)["']`)
)

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
