package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"devctl/internal/invoke"
)

func TestMain(m *testing.M) {
	InitExceptions()
	cfg = Config{
		Targets: make(map[string]Target),
		Vars:    make(map[string]Var),
	}
	os.Exit(m.Run())
}

// fakeRunner records invocations instead of spawning a shell.
type fakeRunner struct {
	runs    []invoke.Invocation
	fail    map[string]error
	listing string
	listErr error
}

func (f *fakeRunner) Run(_ context.Context, inv invoke.Invocation) error {
	f.runs = append(f.runs, inv)
	for sub, err := range f.fail {
		if strings.Contains(inv.Line, sub) {
			return err
		}
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return []byte(f.listing), f.listErr
}

func (f *fakeRunner) lines() []string {
	out := make([]string, 0, len(f.runs))
	for _, inv := range f.runs {
		out = append(out, inv.Line)
	}
	return out
}

func resetExit(t *testing.T) {
	t.Helper()
	exitStatus = 0
	t.Cleanup(func() { exitStatus = 0 })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ===== CONFIG LOADING TESTS =====

func TestLoadConfig(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	dir := t.TempDir()
	path := writeFile(t, dir, "devctl.yaml", `
continue_on_error: true
vars:
  PKG: rsvim_core
tools:
  linkers: [lld]
test:
  log_var: APP_LOG
  jobs: 4
miri:
  package: rsvim_core
  total_jobs: 6
  features: [unicode_lines]
doc:
  crate: rsvim_core
release:
  changelog: NEWS.md
targets:
  check:
    run: ["cargo check -p $PKG"]
`)

	if err := loadConfig(path); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if !cfg.ContinueOnError {
		t.Error("ContinueOnError = false, want true")
	}
	if got := cfg.Vars["PKG"]; got != "rsvim_core" {
		t.Errorf("Vars[PKG] = %q, want rsvim_core", got)
	}
	if diff := cmp.Diff([]string{"lld"}, cfg.Tools.Linkers); diff != "" {
		t.Errorf("Tools.Linkers mismatch (-want +got):\n%s", diff)
	}
	if cfg.Test.LogVar != "APP_LOG" || cfg.Test.Jobs != 4 {
		t.Errorf("Test = %+v", cfg.Test)
	}
	want := MiriConfig{Package: "rsvim_core", TotalJobs: 6, Features: []string{"unicode_lines"}}
	if diff := cmp.Diff(want, cfg.Miri); diff != "" {
		t.Errorf("Miri mismatch (-want +got):\n%s", diff)
	}
	if cfg.Doc.Crate != "rsvim_core" || cfg.Release.Changelog != "NEWS.md" {
		t.Errorf("Doc = %+v, Release = %+v", cfg.Doc, cfg.Release)
	}
	if diff := cmp.Diff([]string{"cargo check -p $PKG"}, cfg.Targets["check"].Run); diff != "" {
		t.Errorf("Targets[check].Run mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	if err := loadConfig(""); err != nil {
		t.Errorf("loadConfig(\"\") without devctl.yaml error = %v, want nil", err)
	}
	if cfg.Targets != nil {
		t.Errorf("Targets = %v, want empty config", cfg.Targets)
	}

	err = loadConfig(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Fatal("loadConfig(missing.yaml) error = nil, want not found")
	}
	if !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "Empty file", content: "", wantErr: false},
		{name: "Wrong type", content: "targets: [1, 2]\n", wantErr: true},
		{name: "Broken syntax", content: "vars: {a: b\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, filepath.Base(t.Name())+".yaml", tt.content)
			err := loadConfig(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigIncludes(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	dir := t.TempDir()
	writeFile(t, dir, "extra.yaml", `
targets:
  extra:
    run: ["echo extra"]
`)
	path := writeFile(t, dir, "devctl.yaml", `
include: [extra.yaml, absent.yaml]
targets:
  main:
    run: ["echo main"]
`)

	if err := loadConfig(path); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	for _, name := range []string{"main", "extra"} {
		if _, ok := cfg.Targets[name]; !ok {
			t.Errorf("target %q not loaded", name)
		}
	}
}

// ===== VARIABLE TESTS =====

func TestParseVars(t *testing.T) {
	original := cfg.Vars
	defer func() { cfg.Vars = original }()
	cfg.Vars = map[string]Var{
		"PKG":    "rsvim_core",
		"TARGET": "x86_64-unknown-linux-gnu",
	}

	tests := []struct {
		name     string
		input    string
		target   string
		expected string
	}{
		{name: "Plain variable", input: "cargo test -p $PKG", target: "t", expected: "cargo test -p rsvim_core"},
		{name: "Braced variable", input: "cargo build --target ${TARGET}", target: "b", expected: "cargo build --target x86_64-unknown-linux-gnu"},
		{name: "Target name", input: "echo $@", target: "release", expected: "echo release"},
		{name: "Mixed", input: "echo $@ $PKG", target: "doc", expected: "echo doc rsvim_core"},
		{name: "Undefined stays", input: "echo $DEVCTL_UNDEFINED_VAR", target: "t", expected: "echo $DEVCTL_UNDEFINED_VAR"},
		{name: "No variables", input: "cargo fmt", target: "fmt", expected: "cargo fmt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseVars(tt.input, tt.target); got != tt.expected {
				t.Errorf("ParseVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetVar(t *testing.T) {
	original := cfg.Vars
	defer func() { cfg.Vars = original }()
	cfg.Vars = map[string]Var{"PKG": "rsvim_core"}
	t.Setenv("DEVCTL_TEST_ENV", "from-env")

	wd, _ := os.Getwd()

	tests := []struct {
		name     string
		varName  string
		expected string
	}{
		{name: "Config variable", varName: "PKG", expected: "rsvim_core"},
		{name: "Dollar prefix", varName: "$PKG", expected: "rsvim_core"},
		{name: "Environment fallback", varName: "DEVCTL_TEST_ENV", expected: "from-env"},
		{name: "Target name", varName: "@", expected: "build"},
		{name: "Working directory", varName: "cwd", expected: wd},
		{name: "Unknown", varName: "DEVCTL_NOT_SET_ANYWHERE", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetVar(tt.varName, "build"); got != tt.expected {
				t.Errorf("GetVar(%q) = %q, want %q", tt.varName, got, tt.expected)
			}
		})
	}

	if ts := GetVar("TIMESTAMP", "build"); len(ts) != len("2006-01-02 15:04:05") {
		t.Errorf("GetVar(TIMESTAMP) = %q, want a timestamp", ts)
	}
}

func TestGetTarget(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	cfg = Config{Targets: map[string]Target{
		"check": {Run: []string{"cargo check"}},
	}}

	if got := GetTarget("check"); len(got.Run) != 1 {
		t.Errorf("GetTarget(check) = %+v", got)
	}
	if got := GetTarget("missing"); got.Run != nil || got.Deps != nil {
		t.Errorf("GetTarget(missing) = %+v, want zero target", got)
	}
	if diff := cmp.Diff(defaultFormat, GetTarget(formatTarget)); diff != "" {
		t.Errorf("GetTarget(fmt) default mismatch (-want +got):\n%s", diff)
	}

	cfg.Targets[formatTarget] = Target{Run: []string{"cargo fmt --all"}}
	if diff := cmp.Diff([]string{"cargo fmt --all"}, GetTarget(formatTarget).Run); diff != "" {
		t.Errorf("configured fmt target mismatch (-want +got):\n%s", diff)
	}
}

// ===== EXCEPTION TESTS =====

func TestRaiseException(t *testing.T) {
	tests := []struct {
		number int8
		value  string
		want   string
	}{
		{TARGET_NOT_FOUND, "lint", "Target lint Not Found"},
		{FILE_NOT_FOUND, "devctl.yaml", "Config devctl.yaml Not Found"},
		{INVALID_LEVEL, `"huge"`, `Release level "huge" is not one of`},
		{NOT_GIT_ROOT, "/tmp/x", "'/tmp/x' must be the git repository root"},
		{INVALID_JOB, "job index 11 out of range [0,10)", "Invalid job: job index 11"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			err := RaiseException("cmd", tt.number, tt.value)
			if err == nil {
				t.Fatal("RaiseException() = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("RaiseException() = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRecordExit(t *testing.T) {
	resetExit(t)

	recordExit(nil)
	if exitStatus != 0 {
		t.Errorf("exitStatus after nil = %d, want 0", exitStatus)
	}

	recordExit(&invoke.ExitError{Code: 101, Line: "cargo test", Err: errors.New("exit status 101")})
	if exitStatus != 101 {
		t.Errorf("exitStatus = %d, want 101", exitStatus)
	}

	// the first failure wins
	recordExit(&invoke.ExitError{Code: 2, Line: "cargo build"})
	if exitStatus != 101 {
		t.Errorf("exitStatus = %d, want 101 kept", exitStatus)
	}
}

func TestSkipError(t *testing.T) {
	original := cfg.ContinueOnError
	defer func() { cfg.ContinueOnError = original }()

	cfg.ContinueOnError = false
	if SkipError(false) {
		t.Error("SkipError(false) = true without global continue_on_error")
	}
	if !SkipError(true) {
		t.Error("SkipError(true) = false")
	}
	cfg.ContinueOnError = true
	if !SkipError(false) {
		t.Error("SkipError(false) = false with global continue_on_error")
	}
}

// ===== BENCHMARKS =====

func BenchmarkParseVars(b *testing.B) {
	original := cfg.Vars
	defer func() { cfg.Vars = original }()
	cfg.Vars = map[string]Var{"PKG": "rsvim_core", "TARGET": "x86_64"}
	for i := 0; i < b.N; i++ {
		_ = ParseVars("cargo build -p $PKG --target ${TARGET} # $@", "build")
	}
}
