package parser_test

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/imyousuf/codegraph/internal/parser"
	"github.com/imyousuf/codegraph/internal/parser/golang"
	"github.com/imyousuf/codegraph/internal/parser/python"
)

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"/people"`, "/people"},
		{`'/people'`, "/people"},
		{"`/people`", "/people"},
		{`:show`, "show"},
		{`:"show"`, "show"},
		{`r"/raw"`, "/raw"},
		{`f'/fmt'`, "/fmt"},
		{`"""doc"""`, "doc"},
		{`Admin::User`, "Admin::User"},
		{`plain`, "plain"},
	}
	for _, tt := range tests {
		if got := parser.Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVerbFromName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"get", "GET"},
		{"Post", "POST"},
		{"DELETE", "DELETE"},
		{"http.MethodPatch", "PATCH"},
		{`"put"`, "PUT"},
		{"HandleFunc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parser.VerbFromName(tt.in); got != tt.want {
			t.Errorf("VerbFromName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"h.GetPerson", "GetPerson"},
		{"Admin::User", "User"},
		{"people#show", "people#show"},
		{"listPeople", "listPeople"},
	}
	for _, tt := range tests {
		if got := parser.LastSegment(tt.in); got != tt.want {
			t.Errorf("LastSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := parser.NewRegistry(golang.New(), python.New())

	got := r.Languages()
	want := []parser.Language{parser.LangGo, parser.LangPython}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Languages() = %v, want %v", got, want)
	}

	s, err := r.Get(parser.LangPython)
	if err != nil {
		t.Fatalf("Get(python): %v", err)
	}
	if s.Language() != parser.LangPython {
		t.Errorf("Get(python) returned %s", s.Language())
	}

	r.Register(golang.New())
	if n := len(r.All()); n != 2 {
		t.Errorf("re-registering grew the registry to %d stacks", n)
	}

	if _, err := r.Get(parser.LangRuby); !errors.Is(err, parser.ErrUnsupportedLanguage) {
		t.Errorf("Get(ruby) error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestClaims(t *testing.T) {
	s := golang.New()
	for path, want := range map[string]bool{
		"main.go":          true,
		"go.mod":           true,
		"pkg/go.mod":       true,
		"app.py":           false,
		"README.md":        false,
		"requirements.txt": false,
	} {
		if got := parser.Claims(s, path); got != want {
			t.Errorf("Claims(go, %q) = %v, want %v", path, got, want)
		}
	}
}

func TestDetectLanguages(t *testing.T) {
	reactPkg := []byte(`{"dependencies": {"react": "^18.2.0", "axios": "^1.6.0"}}`)
	plainPkg := []byte(`{"devDependencies": {"typescript": "^5.0.0"}}`)
	read := func(pkg []byte) func(string) ([]byte, error) {
		return func(string) ([]byte, error) { return pkg, nil }
	}

	tests := []struct {
		name  string
		paths []string
		read  func(string) ([]byte, error)
		want  []parser.Language
	}{
		{"go module", []string{"go.mod", "main.go"}, nil, []parser.Language{parser.LangGo}},
		{"react app", []string{"package.json", "src/App.tsx"}, read(reactPkg), []parser.Language{parser.LangReact}},
		{"typescript package", []string{"package.json", "src/index.ts"}, read(plainPkg), []parser.Language{parser.LangTypeScript}},
		{"manifests win", []string{"Gemfile", "script.py"}, nil, []parser.Language{parser.LangRuby}},
		{"swift package", []string{"Package.swift", "Sources/PeopleKit/Client.swift"}, nil, []parser.Language{parser.LangSwift}},
		{"extensions", []string{"a.py", "b.rb", "c.ts"}, nil, []parser.Language{parser.LangPython, parser.LangRuby, parser.LangTypeScript}},
		{"nothing", []string{"README.md"}, nil, []parser.Language{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.DetectLanguages(tt.paths, tt.read)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectLanguages(%v) = %v, want %v", tt.paths, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	src := []byte("package main\n\nimport \"fmt\"\n\nfunc main() {\n\tgreet()\n\tfmt.Println(\"hi\")\n}\n\nfunc greet() {}\n")
	res, err := parser.Extract(context.Background(), golang.New(), parser.SourceFile{Path: "cmd/main.go", Content: src})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Lines != 10 {
		t.Errorf("Lines = %d, want 10", res.Lines)
	}
	if res.Language != parser.LangGo {
		t.Errorf("Language = %s, want go", res.Language)
	}
	var names []string
	for _, fn := range res.Functions {
		names = append(names, fn.Node.Name)
		if fn.Node.File != "cmd/main.go" {
			t.Errorf("%s file = %q", fn.Node.Name, fn.Node.File)
		}
	}
	if !reflect.DeepEqual(names, []string{"main", "greet"}) {
		t.Errorf("functions = %v, want [main greet]", names)
	}
	if res.ImportMap["fmt"] != "fmt" {
		t.Errorf("ImportMap = %v", res.ImportMap)
	}
}

func TestExtractPackageFile(t *testing.T) {
	content, err := os.ReadFile("manifest/testdata/go.mod")
	if err != nil {
		t.Skipf("no go.mod fixture: %v", err)
	}
	res, err := parser.Extract(context.Background(), golang.New(), parser.SourceFile{Path: "go.mod", Content: content})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Libraries) == 0 {
		t.Error("go.mod yielded no libraries")
	}
	if len(res.Functions) != 0 {
		t.Errorf("manifest yielded %d functions", len(res.Functions))
	}
}

func TestMustQueryPanicsOnBadPattern(t *testing.T) {
	lang := golang.New().Grammar()
	if q := parser.MustQuery(lang, `(function_declaration name: (identifier) @name)`); q == nil {
		t.Fatal("expected a compiled query")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an invalid pattern")
		}
	}()
	parser.MustQuery(lang, "(not_a_node")
}
