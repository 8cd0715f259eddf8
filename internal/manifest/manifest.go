// Package manifest extracts declared dependencies from the manifest files
// found in a source tree.
package manifest

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const (
	PackageJSON  = "package.json"
	Requirements = "requirements.txt"
	GoMod        = "go.mod"
)

// Filenames lists the manifests that are looked up, in fetch order.
var Filenames = []string{PackageJSON, Requirements, GoMod}

// Parse dispatches on the manifest's base name.
func Parse(filename string, content []byte) ([]models.Dependency, error) {
	switch strings.ToLower(path.Base(filename)) {
	case PackageJSON:
		return ParsePackageJSON(content)
	case Requirements:
		return ParseRequirements(content), nil
	case GoMod:
		return ParseGoMod(content)
	default:
		return nil, fmt.Errorf("unsupported manifest: %s", filename)
	}
}

type packageJSON struct {
	Dependencies    map[string]any `json:"dependencies"`
	DevDependencies map[string]any `json:"devDependencies"`
}

// ParsePackageJSON returns runtime dependencies followed by dev
// dependencies, each group sorted by name.
func ParsePackageJSON(content []byte) ([]models.Dependency, error) {
	var pkg packageJSON
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	deps := npmGroup(pkg.Dependencies)
	return append(deps, npmGroup(pkg.DevDependencies)...), nil
}

func npmGroup(group map[string]any) []models.Dependency {
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.Dependency, 0, len(names))
	for _, name := range names {
		out = append(out, models.Dependency{Manager: "npm", Name: name, Version: fmt.Sprint(group[name])})
	}
	return out
}

var requirementLine = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)(?:\[.*\])?\s*([<>=!~]+)?\s*(.+)?$`)

// ParseRequirements reads a pip requirements file. Comments and lines that
// are not package specs (options, URLs) are ignored.
func ParseRequirements(content []byte) []models.Dependency {
	var out []models.Dependency
	for _, line := range strings.Split(string(content), "\n") {
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		m := requirementLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		dep := models.Dependency{Manager: "pip", Name: m[1]}
		if m[3] != "" {
			dep.Version = m[2] + m[3]
		}
		out = append(out, dep)
	}
	return out
}

// ParseGoMod returns the module's require directives, direct ones first.
func ParseGoMod(content []byte) ([]models.Dependency, error) {
	f, err := modfile.ParseLax(GoMod, content, nil)
	if err != nil {
		return nil, fmt.Errorf("parse go.mod: %w", err)
	}

	var direct, indirect []models.Dependency
	for _, r := range f.Require {
		dep := models.Dependency{Manager: "go", Name: r.Mod.Path, Version: r.Mod.Version}
		if r.Indirect {
			indirect = append(indirect, dep)
			continue
		}
		direct = append(direct, dep)
	}
	return append(direct, indirect...), nil
}

// PickCandidate returns the shallowest path named filename, ignoring vendored
// node_modules and .git content. Equal depths prefer the shorter path.
func PickCandidate(paths []string, filename string) (string, bool) {
	filename = strings.ToLower(filename)

	var candidates []string
	for _, p := range paths {
		lower := strings.ToLower(p)
		if lower != filename && !strings.HasSuffix(lower, "/"+filename) {
			continue
		}
		if ignored(p) {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := depth(candidates[i]), depth(candidates[j])
		if di != dj {
			return di < dj
		}
		return len(candidates[i]) < len(candidates[j])
	})
	return candidates[0], true
}

func ignored(p string) bool {
	return strings.HasPrefix(p, "node_modules/") || strings.Contains(p, "/node_modules/") ||
		strings.HasPrefix(p, ".git/") || strings.Contains(p, "/.git/")
}

func depth(p string) int {
	n := 0
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			n++
		}
	}
	return n
}
