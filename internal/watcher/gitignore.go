package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

// ErrInvalidPattern indicates an include or exclude glob could not be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// SkipDirs are never descended into: VCS metadata, dependency caches and
// build output.
var SkipDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	"node_modules":     true,
	"vendor":           true,
	"bower_components": true,
	"__pycache__":      true,
	".venv":            true,
	"venv":             true,
	".tox":             true,
	"dist":             true,
	"build":            true,
	"coverage":         true,
	".next":            true,
	"tmp":              true,
	".bundle":          true,
}

// Matcher decides which paths under a root take part in a build. Paths are
// matched relative to the root, slash separated.
type Matcher struct {
	root    string
	include []glob.Glob
	exclude []glob.Glob
	ignores []scopedIgnore
}

// scopedIgnore is one .gitignore file; its rules apply below dir.
type scopedIgnore struct {
	dir string
	gi  *ignore.GitIgnore
}

// NewMatcher compiles the include and exclude globs for root. An empty
// include list admits every file.
func NewMatcher(root string, include, exclude []string) (*Matcher, error) {
	m := &Matcher{root: root}
	var err error
	if m.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if m.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// LoadPatterns finds and compiles every .gitignore file under the root.
func (m *Matcher) LoadPatterns() error {
	m.ignores = nil
	return filepath.WalkDir(m.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			if p != m.root && SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != ".gitignore" {
			return nil
		}
		gi, err := ignore.CompileIgnoreFile(p)
		if err != nil {
			return nil // skip unreadable gitignore files
		}
		m.ignores = append(m.ignores, scopedIgnore{dir: m.Rel(filepath.Dir(p)), gi: gi})
		return nil
	})
}

// Rel returns p relative to the root, slash separated. Paths outside the
// root are returned cleaned but otherwise unchanged.
func (m *Matcher) Rel(p string) string {
	rel, err := filepath.Rel(m.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(p))
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return ""
	}
	return rel
}

// Ignored reports whether the relative path rel is excluded by a skip
// directory, a .gitignore rule or an exclude glob.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	if rel == "" {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if SkipDirs[seg] {
			return true
		}
	}
	for _, si := range m.ignores {
		sub := rel
		if si.dir != "" {
			if !strings.HasPrefix(rel, si.dir+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, si.dir+"/")
		}
		if si.gi.MatchesPath(sub) || (isDir && si.gi.MatchesPath(sub+"/")) {
			return true
		}
	}
	for _, g := range m.exclude {
		if g.Match(rel) || g.Match(path.Base(rel)) {
			return true
		}
	}
	return false
}

// Included reports whether a file passes the include globs.
func (m *Matcher) Included(rel string) bool {
	if len(m.include) == 0 {
		return true
	}
	for _, g := range m.include {
		if g.Match(rel) || g.Match(path.Base(rel)) {
			return true
		}
	}
	return false
}

// Match reports whether the absolute or root-relative path p should be
// left out, stat-ing it to tell directories apart.
func (m *Matcher) Match(p string) bool {
	isDir := false
	if info, err := os.Stat(p); err == nil {
		isDir = info.IsDir()
	}
	return m.Ignored(m.Rel(p), isDir)
}
