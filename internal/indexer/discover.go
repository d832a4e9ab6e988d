package indexer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/imyousuf/codegraph/internal/watcher"
)

// Discover walks root and returns the slash-separated paths, relative to
// root, of every regular file not excluded by .gitignore rules, skip
// directories or exclude globs and admitted by the include globs. The
// result is sorted.
func Discover(root string, include, exclude []string) ([]string, error) {
	m, err := watcher.NewMatcher(root, include, exclude)
	if err != nil {
		return nil, err
	}
	if err := m.LoadPatterns(); err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil // skip inaccessible entries
		}
		rel := m.Rel(p)
		if d.IsDir() {
			if m.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || m.Ignored(rel, false) || !m.Included(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
