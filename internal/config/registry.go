package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const registryFileName = ".codegraph.conf"

// ProjectEntry maps a project root to its snapshot store so commands run
// from anywhere below Root open the same store.
type ProjectEntry struct {
	Name       string    `yaml:"name"`
	Root       string    `yaml:"root"`
	StorePath  string    `yaml:"store_path"`
	Registered time.Time `yaml:"registered"`
}

// contains reports whether path is Root or below it.
func (e ProjectEntry) contains(path string) bool {
	return path == e.Root || strings.HasPrefix(path, e.Root+string(filepath.Separator))
}

type registryFile struct {
	Projects []ProjectEntry `yaml:"projects"`
}

// RegistryPath returns the path of the project registry (~/.codegraph.conf),
// or "" when there is no home directory.
func RegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, registryFileName)
}

// RegisterProject records root and its store, replacing an entry with the
// same root. An empty name defaults to the base name of root.
func RegisterProject(name, root, storePath string) error {
	root = absPath(root)
	if name == "" {
		name = filepath.Base(root)
	}
	entry := ProjectEntry{Name: name, Root: root, StorePath: storePath, Registered: time.Now().UTC()}

	entries := ListProjects()
	replaced := false
	for i := range entries {
		if entries[i].Root == root {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return writeRegistry(entries)
}

// UnregisterProject removes the entry for root and reports whether one
// existed.
func UnregisterProject(root string) (bool, error) {
	root = absPath(root)
	entries := ListProjects()
	kept := entries[:0]
	for _, e := range entries {
		if e.Root != root {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	return true, writeRegistry(kept)
}

// LookupProject returns the entry whose Root is path or its closest
// ancestor, so a project nested inside another wins for its own subtree.
func LookupProject(path string) (*ProjectEntry, bool) {
	path = absPath(path)
	var best *ProjectEntry
	for _, e := range ListProjects() {
		if !e.contains(path) {
			continue
		}
		if best == nil || len(e.Root) > len(best.Root) {
			e := e
			best = &e
		}
	}
	return best, best != nil
}

// ListProjects returns the registered projects ordered by name. A missing
// or unreadable registry is empty.
func ListProjects() []ProjectEntry {
	entries, err := readRegistry()
	if err != nil {
		return nil
	}
	return entries
}

func readRegistry() ([]ProjectEntry, error) {
	regPath := RegistryPath()
	if regPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(regPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var reg registryFile
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", regPath, err)
	}
	sort.SliceStable(reg.Projects, func(i, j int) bool { return reg.Projects[i].Name < reg.Projects[j].Name })
	return reg.Projects, nil
}

func writeRegistry(entries []ProjectEntry) error {
	regPath := RegistryPath()
	if regPath == "" {
		return fmt.Errorf("no home directory for %s", registryFileName)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	data, err := yaml.Marshal(&registryFile{Projects: entries})
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	return os.WriteFile(regPath, data, 0o644)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
