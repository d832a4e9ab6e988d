package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/imyousuf/codegraph/internal/graph"
)

// Ecosystem names recorded on Library nodes.
const (
	EcosystemGo     = "go"
	EcosystemPython = "python"
	EcosystemRuby   = "ruby"
	EcosystemNPM    = "npm"
	EcosystemSwift  = "swift"
)

// Filenames lists the manifest files Libraries understands.
var Filenames = []string{"go.mod", "pyproject.toml", "requirements.txt", "Gemfile", "package.json", "Package.swift"}

// Libraries extracts one Library record per declared dependency of a
// package manifest. Unknown files yield no records.
func Libraries(filePath string, content []byte) ([]graph.NodeData, error) {
	switch filepath.Base(filePath) {
	case "pyproject.toml":
		return parsePyprojectToml(filePath, content)
	case "requirements.txt":
		return parseRequirementsTxt(filePath, content), nil
	case "package.json":
		return parsePackageJSON(filePath, content)
	case "go.mod":
		return parseGoMod(filePath, content)
	case "Gemfile":
		return parseGemfile(filePath, content), nil
	case "Package.swift":
		return parsePackageSwift(filePath, content), nil
	default:
		return nil, nil
	}
}

// --- pyproject.toml ---

type pyprojectFile struct {
	Project struct {
		Name         string   `toml:"name"`
		Version      string   `toml:"version"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyprojectToml(filePath string, content []byte) ([]graph.NodeData, error) {
	var pf pyprojectFile
	if err := toml.Unmarshal(content, &pf); err != nil {
		return nil, fmt.Errorf("pyproject: %w", err)
	}

	e := &extractor{filePath: filePath, ecosystem: EcosystemPython, lines: strings.Split(string(content), "\n")}
	for _, depStr := range pf.Project.Dependencies {
		name, version := parsePythonDep(depStr)
		e.add(name, version, e.findLine(name))
	}
	for name, v := range pf.Tool.Poetry.Dependencies {
		if name == "python" {
			continue
		}
		version, _ := v.(string)
		e.add(name, version, e.findLine(name))
	}
	return e.sorted(), nil
}

// parsePythonDep parses a PEP 508 dependency string like "fastapi>=0.100.0".
var pythonDepRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+(?:\[[A-Za-z0-9_,.-]+\])?)(.*)$`)

func parsePythonDep(dep string) (name, version string) {
	dep = strings.TrimSpace(dep)
	m := pythonDepRe.FindStringSubmatch(dep)
	if m == nil {
		return dep, ""
	}
	return m[1], strings.TrimSpace(m[2])
}

// --- requirements.txt ---

func parseRequirementsTxt(filePath string, content []byte) []graph.NodeData {
	e := &extractor{filePath: filePath, ecosystem: EcosystemPython}
	for i, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)

		// Skip blanks, comments and pip flags (-r, -i, -e, ...).
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
			continue
		}
		if idx := strings.Index(trimmed, " #"); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
		}
		name, version := parsePythonDep(trimmed)
		e.add(name, version, i)
	}
	return e.libs
}

// --- package.json ---

type packageJSONFile struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(filePath string, content []byte) ([]graph.NodeData, error) {
	var pj packageJSONFile
	if err := json.Unmarshal(content, &pj); err != nil {
		return nil, fmt.Errorf("package.json: %w", err)
	}

	e := &extractor{filePath: filePath, ecosystem: EcosystemNPM, lines: strings.Split(string(content), "\n")}
	for name, version := range pj.Dependencies {
		e.add(name, version, e.findLine(`"`+name+`"`))
	}
	for name, version := range pj.DevDependencies {
		lib := e.add(name, version, e.findLine(`"`+name+`"`))
		lib.SetMeta("scope", "dev")
	}
	return e.sorted(), nil
}

// DependsOn reports whether a package.json declares dep in its regular or
// development dependencies.
func DependsOn(content []byte, dep string) bool {
	var pj packageJSONFile
	if err := json.Unmarshal(content, &pj); err != nil {
		return false
	}
	_, ok := pj.Dependencies[dep]
	_, dev := pj.DevDependencies[dep]
	return ok || dev
}

// --- go.mod ---

func parseGoMod(filePath string, content []byte) ([]graph.NodeData, error) {
	mf, err := modfile.ParseLax(filePath, content, nil)
	if err != nil {
		return nil, fmt.Errorf("go.mod: %w", err)
	}

	e := &extractor{filePath: filePath, ecosystem: EcosystemGo}
	for _, req := range mf.Require {
		line := 0
		if req.Syntax != nil {
			line = req.Syntax.Start.Line - 1
		}
		lib := e.add(req.Mod.Path, req.Mod.Version, line)
		if req.Indirect {
			lib.SetMeta("scope", "indirect")
		}
	}
	return e.libs, nil
}

// --- Gemfile ---

var gemRe = regexp.MustCompile(`^gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)

func parseGemfile(filePath string, content []byte) []graph.NodeData {
	e := &extractor{filePath: filePath, ecosystem: EcosystemRuby}
	group := ""
	for i, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "group "):
			group = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, "group "), "do"))
			continue
		case trimmed == "end":
			group = ""
			continue
		}
		m := gemRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		lib := e.add(m[1], m[2], i)
		if group != "" {
			lib.SetMeta("scope", group)
		}
	}
	return e.libs
}

// --- Package.swift ---

var (
	swiftPackageRe = regexp.MustCompile(`\.package\(.*?url:\s*"([^"]+)"(.*)`)
	swiftVersionRe = regexp.MustCompile(`"([^"]+)"`)
)

// parsePackageSwift names each remote package after the last segment of
// its URL. Local path packages are skipped.
func parsePackageSwift(filePath string, content []byte) []graph.NodeData {
	e := &extractor{filePath: filePath, ecosystem: EcosystemSwift}
	for i, line := range strings.Split(string(content), "\n") {
		m := swiftPackageRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSuffix(path.Base(m[1]), ".git")
		version := ""
		if v := swiftVersionRe.FindStringSubmatch(m[2]); v != nil {
			version = v[1]
		}
		e.add(name, version, i)
	}
	return e.libs
}

// --- shared helpers ---

type extractor struct {
	filePath  string
	ecosystem string
	lines     []string
	libs      []graph.NodeData
}

func (e *extractor) add(name, version string, line int) *graph.NodeData {
	nd := graph.NewNodeData(name, e.filePath)
	nd.Start, nd.End = line, line
	nd.SetMeta(graph.MetaEcosystem, e.ecosystem)
	if version != "" {
		nd.SetMeta(graph.MetaVersion, version)
	}
	e.libs = append(e.libs, nd)
	return &e.libs[len(e.libs)-1]
}

// sorted orders libraries by line so map-sourced manifests stay deterministic.
func (e *extractor) sorted() []graph.NodeData {
	sort.Slice(e.libs, func(i, j int) bool {
		if e.libs[i].Start != e.libs[j].Start {
			return e.libs[i].Start < e.libs[j].Start
		}
		return e.libs[i].Name < e.libs[j].Name
	})
	return e.libs
}

// findLine returns the 0-based index of the first line containing substr,
// or 0 when absent.
func (e *extractor) findLine(substr string) int {
	for i, line := range e.lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return 0
}
