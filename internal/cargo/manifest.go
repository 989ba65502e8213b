// Package cargo reads the workspace manifest and computes release versions.
package cargo

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

// ManifestName is the manifest file at the workspace root.
const ManifestName = "Cargo.toml"

// Manifest is the subset of a Cargo.toml the tool cares about.
type Manifest struct {
	Package   Package   `toml:"package"`
	Workspace Workspace `toml:"workspace"`
}

// Package version may be a string or an inherited `{ workspace = true }`
// table, so it is decoded loosely.
type Package struct {
	Name    string `toml:"name"`
	Version any    `toml:"version"`
}

type Workspace struct {
	Members []string `toml:"members"`
	Package struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

// Load decodes the manifest at file.
func Load(file string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(file, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest parse failed (%s): %w", file, err)
	}
	return m, nil
}

// Parse decodes manifest text.
func Parse(data string) (Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest parse failed: %w", err)
	}
	return m, nil
}

// Version returns the workspace version, falling back to the root package's
// own version.
func (m Manifest) Version() (string, bool) {
	if v := strings.TrimSpace(m.Workspace.Package.Version); v != "" {
		return v, true
	}
	if v, ok := m.Package.Version.(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

// HasMember reports whether a workspace member directory is named pkg.
// A manifest without members only knows its own package.
func (m Manifest) HasMember(pkg string) bool {
	if len(m.Workspace.Members) == 0 {
		return m.Package.Name == pkg
	}
	for _, member := range m.Workspace.Members {
		if path.Base(strings.TrimSuffix(member, "/")) == pkg {
			return true
		}
	}
	return false
}

var preLabels = map[string]int{"alpha": 1, "beta": 2, "rc": 3}

// NextVersion returns the version cargo-release produces for level.
func NextVersion(current, level string) (string, error) {
	v := "v" + strings.TrimPrefix(strings.TrimSpace(current), "v")
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", current)
	}
	major, minor, patch, err := coreParts(v)
	if err != nil {
		return "", err
	}
	pre := strings.TrimPrefix(semver.Prerelease(v), "-")

	var next string
	switch level {
	case "major":
		next = fmt.Sprintf("%d.0.0", major+1)
	case "minor":
		next = fmt.Sprintf("%d.%d.0", major, minor+1)
	case "patch":
		if pre != "" {
			next = fmt.Sprintf("%d.%d.%d", major, minor, patch)
		} else {
			next = fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
		}
	case "alpha", "beta", "rc":
		next, err = nextPre(major, minor, patch, pre, level)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown release level %q", level)
	}

	if semver.Compare("v"+next, v) <= 0 {
		return "", fmt.Errorf("release level %q does not advance %s", level, current)
	}
	return next, nil
}

func nextPre(major, minor, patch int, pre, label string) (string, error) {
	if pre == "" {
		return fmt.Sprintf("%d.%d.%d-%s.1", major, minor, patch+1, label), nil
	}
	curLabel, num, _ := strings.Cut(pre, ".")
	curRank, known := preLabels[curLabel]
	if !known {
		return "", fmt.Errorf("unsupported pre-release %q", pre)
	}
	switch {
	case curRank == preLabels[label]:
		n, err := strconv.Atoi(num)
		if err != nil {
			n = 0
		}
		return fmt.Sprintf("%d.%d.%d-%s.%d", major, minor, patch, label, n+1), nil
	case curRank < preLabels[label]:
		return fmt.Sprintf("%d.%d.%d-%s.1", major, minor, patch, label), nil
	default:
		return "", fmt.Errorf("cannot move from %s back to %s", curLabel, label)
	}
}

func coreParts(v string) (int, int, int, error) {
	core := strings.TrimPrefix(v, "v")
	core, _, _ = strings.Cut(core, "-")
	core, _, _ = strings.Cut(core, "+")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid version core %q", core)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version core %q: %w", core, err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
