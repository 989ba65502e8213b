package compose

import "fmt"

// Kind selects the workflow an Action drives.
type Kind int

const (
	Lint Kind = iota + 1
	Test
	ListTests
	Build
	Document
	Release
	VersionBump
)

var kindNames = map[Kind]string{
	Lint:        "lint",
	Test:        "test",
	ListTests:   "list-tests",
	Build:       "build",
	Document:    "document",
	Release:     "release",
	VersionBump: "version-bump",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Profile is the cargo build profile.
type Profile string

const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
	ProfileNightly Profile = "nightly"
)

// Release levels accepted by cargo-release.
var ReleaseLevels = []string{"alpha", "beta", "rc", "major", "minor", "patch"}

// Action is a tagged variant: Kind decides which of the remaining fields are
// meaningful.
type Action struct {
	Kind Kind

	// Build
	Features    []string
	AllFeatures bool
	Profile     Profile

	// Lint, Document
	Watch bool

	// Test
	Names       []string
	Jobs        int
	MiriPackage string

	// Release, VersionBump
	Level   string
	Execute bool
}

// traits lists which composition rules apply to a kind.
type traits struct {
	warnings bool
	compiles bool
	linker   bool
	cache    bool
}

var kindTraits = map[Kind]traits{
	Lint:        {warnings: true, compiles: true, linker: true, cache: true},
	Test:        {compiles: true, cache: true},
	ListTests:   {compiles: true, cache: true},
	Build:       {compiles: true, linker: true, cache: true},
	Document:    {compiles: true, linker: true},
	Release:     {},
	VersionBump: {},
}
