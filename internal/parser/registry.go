package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/imyousuf/codegraph/internal/parser/manifest"
)

// ErrUnsupportedLanguage is returned when no stack is registered for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry manages the set of language stacks.
type Registry struct {
	mu     sync.RWMutex
	stacks map[Language]Stack
	order  []Language
}

// NewRegistry creates a new, empty stack registry.
func NewRegistry(stacks ...Stack) *Registry {
	r := &Registry{
		stacks: make(map[Language]Stack),
		order:  make([]Language, 0, len(stacks)),
	}
	for _, s := range stacks {
		r.Register(s)
	}
	return r
}

// Register adds a stack to the registry, replacing any stack for the same language.
func (r *Registry) Register(s Stack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lang := s.Language()
	if _, exists := r.stacks[lang]; !exists {
		r.order = append(r.order, lang)
	}
	r.stacks[lang] = s
}

// Get retrieves a stack by language.
func (r *Registry) Get(lang Language) (Stack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stacks[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return s, nil
}

// All returns all registered stacks in registration order.
func (r *Registry) All() []Stack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Stack, len(r.order))
	for i, lang := range r.order {
		result[i] = r.stacks[lang]
	}
	return result
}

// Languages returns the registered languages in registration order.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Language(nil), r.order...)
}

// Claims reports whether stack s handles the file at path, either as
// source, template or package manifest.
func Claims(s Stack, path string) bool {
	if IsPackageFile(s, path) {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range s.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// DetectLanguages guesses which stacks apply to a repository from its
// file list. Package manifests decide first; a package.json that depends
// on react selects React over TypeScript. Without manifests the most
// common source extensions decide.
func DetectLanguages(paths []string, readFile func(string) ([]byte, error)) []Language {
	found := make(map[Language]bool)
	for _, p := range paths {
		switch filepath.Base(p) {
		case "go.mod":
			found[LangGo] = true
		case "pyproject.toml", "requirements.txt", "setup.py":
			found[LangPython] = true
		case "Gemfile":
			found[LangRuby] = true
		case "Package.swift":
			found[LangSwift] = true
		case "package.json":
			if readFile != nil && dependsOnReact(readFile, p) {
				found[LangReact] = true
			} else {
				found[LangTypeScript] = true
			}
		}
	}
	if found[LangReact] {
		delete(found, LangTypeScript)
	}

	if len(found) == 0 {
		counts := make(map[Language]int)
		for _, p := range paths {
			switch filepath.Ext(p) {
			case ".go":
				counts[LangGo]++
			case ".py":
				counts[LangPython]++
			case ".rb":
				counts[LangRuby]++
			case ".swift":
				counts[LangSwift]++
			case ".tsx", ".jsx":
				counts[LangReact]++
			case ".ts", ".js":
				counts[LangTypeScript]++
			}
		}
		for lang, n := range counts {
			if n > 0 {
				found[lang] = true
			}
		}
	}

	langs := make([]Language, 0, len(found))
	for lang := range found {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

func dependsOnReact(readFile func(string) ([]byte, error), p string) bool {
	content, err := readFile(p)
	if err != nil {
		return false
	}
	return manifest.DependsOn(content, "react")
}
