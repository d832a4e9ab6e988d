package html

import (
	"reflect"
	"testing"
)

const testHTML = `<!DOCTYPE html>
<html>
<head>
    <title>People</title>
    <script src="vendor/lib.js"></script>
</head>
<body>
    <a href="/people">All people</a>
    <a href="#top">Top</a>
    <form action="/people/1/articles" method="post">
        <input type="text" name="title">
    </form>
    <form action="/search">
        <input type="search" name="q">
    </form>
    <script src="app.js"></script>
</body>
</html>`

func TestScanHTML(t *testing.T) {
	tmpl := Scan([]byte(testHTML))

	if want := []string{"/people"}; !reflect.DeepEqual(tmpl.Links, want) {
		t.Errorf("Links = %v, want %v", tmpl.Links, want)
	}
	wantForms := []Form{
		{Method: "POST", Action: "/people/1/articles"},
		{Method: "GET", Action: "/search"},
	}
	if !reflect.DeepEqual(tmpl.Forms, wantForms) {
		t.Errorf("Forms = %v, want %v", tmpl.Forms, wantForms)
	}
	if want := []string{"vendor/lib.js", "app.js"}; !reflect.DeepEqual(tmpl.Scripts, want) {
		t.Errorf("Scripts = %v, want %v", tmpl.Scripts, want)
	}
}

const testERB = `<h1><%= @person.name %></h1>
<%= render "profile_card" %>
<%= link_to "Articles", "/people/articles" %>
<a href="<%= person_path(@person) %>">Self</a>
<a href="/people">Back</a>
<%= render partial: 'footer' %>`

func TestScanERB(t *testing.T) {
	tmpl := Scan([]byte(testERB))

	if want := []string{"/people", "/people/articles"}; !reflect.DeepEqual(tmpl.Links, want) {
		t.Errorf("Links = %v, want %v", tmpl.Links, want)
	}
	if want := []string{"profile_card", "footer"}; !reflect.DeepEqual(tmpl.Partials, want) {
		t.Errorf("Partials = %v, want %v", tmpl.Partials, want)
	}
}

func TestTargetsDedup(t *testing.T) {
	tmpl := &Template{
		Links: []string{"/people", "/people/1", "/people"},
		Forms: []Form{{Method: "POST", Action: "/people"}, {Method: "POST", Action: "/orders"}},
	}
	want := []string{"/people", "/people/1", "/orders"}
	if got := tmpl.Targets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Targets() = %v, want %v", got, want)
	}
}

func TestScanEmpty(t *testing.T) {
	tmpl := Scan(nil)
	if len(tmpl.Targets()) != 0 {
		t.Errorf("expected no targets, got %v", tmpl.Targets())
	}
}
