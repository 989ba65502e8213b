// Package probe detects, once per process, which optional toolchain helpers
// are installed and which platform the host is.
package probe

import (
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Platform identifies the host operating system family and CPU architecture
// using Go's GOOS/GOARCH vocabulary.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) IsWindows() bool { return p.OS == "windows" }

func (p Platform) String() string { return p.OS + "/" + p.Arch }

// Tools holds the resolved absolute path of every optional helper. An empty
// path means the helper was not found.
type Tools struct {
	Cache      string
	Linker     string
	LinkerName string
	Driver     string
	LiveReload string
	Watcher    string
}

// HasLinker reports whether both an alternative linker and a compatible
// driver were found.
func (t Tools) HasLinker() bool { return t.Linker != "" && t.Driver != "" }

// Result bundles the facts gathered by a probe.
type Result struct {
	Tools    Tools
	Platform Platform
}

// Names lists the executable names searched for each helper.
type Names struct {
	Cache      string
	Linkers    []string
	Driver     string
	LiveReload string
	Watcher    string
}

// LLDName returns the lld flavour shipped for goos.
func LLDName(goos string) string {
	switch goos {
	case "windows":
		return "lld-link"
	case "darwin":
		return "ld64.lld"
	default:
		return "ld.lld"
	}
}

// DefaultNames returns the helper names searched on goos.
func DefaultNames(goos string) Names {
	return Names{
		Cache:      "sccache",
		Linkers:    []string{"mold", LLDName(goos)},
		Driver:     "clang",
		LiveReload: "browser-sync",
		Watcher:    "bacon",
	}
}

// LookPathFunc resolves an executable name to a path, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Detect resolves names with lookPath. Missing helpers are not errors.
func Detect(lookPath LookPathFunc, goos, goarch string, names Names) Result {
	find := func(name string) string {
		name = strings.TrimSpace(name)
		if name == "" {
			return ""
		}
		path, err := lookPath(name)
		if err != nil {
			return ""
		}
		return path
	}

	var tools Tools
	tools.Cache = find(names.Cache)
	for _, candidate := range names.Linkers {
		if path := find(candidate); path != "" {
			tools.Linker = path
			tools.LinkerName = strings.TrimSpace(candidate)
			break
		}
	}
	tools.Driver = find(names.Driver)
	tools.LiveReload = find(names.LiveReload)
	tools.Watcher = find(names.Watcher)

	return Result{
		Tools:    tools,
		Platform: Platform{OS: goos, Arch: goarch},
	}
}

var (
	once   sync.Once
	cached Result
)

// Run probes the host on first use and returns the same result for the rest
// of the process. names is only consulted by the first call.
func Run(names Names) Result {
	once.Do(func() {
		cached = Detect(exec.LookPath, runtime.GOOS, runtime.GOARCH, names)
	})
	return cached
}
