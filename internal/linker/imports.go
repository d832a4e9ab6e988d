package linker

import (
	"path"
	"strings"
)

// importKey normalizes an import source to a slash-separated module path:
// "./utils" and "../lib/utils" become "utils" and "lib/utils", Python's
// ".models" and "app.models" become "models" and "app/models". relative
// reports whether the source was written relative to the importing file.
func importKey(source string) (key string, relative bool) {
	s := strings.Trim(strings.TrimSpace(source), `"'`)
	for _, alias := range []string{"@/", "~/"} {
		if strings.HasPrefix(s, alias) {
			return strings.TrimPrefix(s, alias), true
		}
	}
	if strings.HasPrefix(s, "/") {
		return strings.TrimPrefix(s, "/"), true
	}
	if !strings.Contains(s, "/") {
		// Python module path.
		trimmed := strings.TrimLeft(s, ".")
		relative = trimmed != s
		return strings.ReplaceAll(trimmed, ".", "/"), relative
	}
	for strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		relative = true
		s = strings.TrimPrefix(strings.TrimPrefix(s, "./"), "../")
	}
	return s, relative
}

func hasPathSuffix(p, suffix string) bool {
	return p == suffix || strings.HasSuffix(p, "/"+suffix)
}

// sourceFiles returns the extracted files an import source refers to.
// Files are matched by their path below the root, so a root directory
// named like a package does not claim it. Sources that match no file name
// a library. Module paths are matched by
// their trailing segments, so github.com/acme/app/internal/store finds
// internal/store/*.go.
func (l *Linker) sourceFiles(source string) []string {
	if l.sources == nil {
		l.sources = make(map[string][]string)
	}
	if files, ok := l.sources[source]; ok {
		return files
	}

	key, relative := importKey(source)
	var files []string
	if key != "" {
		segs := strings.Split(key, "/")
		var candidates []string
		for i := range segs {
			if len(segs)-i < 2 && i > 0 && !relative {
				break
			}
			candidates = append(candidates, strings.Join(segs[i:], "/"))
		}
		root := RootPath(l.opts.Root)
		for _, f := range l.files {
			if matchesSource(strings.TrimPrefix(f, root), candidates) {
				files = append(files, f)
			}
		}
	}
	l.sources[source] = files
	return files
}

func matchesSource(file string, candidates []string) bool {
	noExt := strings.TrimSuffix(file, path.Ext(file))
	dir := path.Dir(file)
	for _, c := range candidates {
		if hasPathSuffix(noExt, c) || hasPathSuffix(dir, c) ||
			hasPathSuffix(noExt, c+"/index") || hasPathSuffix(noExt, c+"/__init__") {
			return true
		}
	}
	return false
}

// isLocalSource reports whether source refers to files of this build.
func (l *Linker) isLocalSource(source string) bool {
	return len(l.sourceFiles(source)) > 0
}
