package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"devctl/internal/compose"
	"devctl/internal/invoke"
	"devctl/internal/probe"
)

func newTestSession(t *testing.T, r commandRunner) (*session, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	facts := probe.Result{Platform: probe.Platform{OS: "linux", Arch: "amd64"}}
	return &session{
		log:      zerolog.Nop(),
		composer: compose.New(facts, zerolog.Nop()),
		runner:   r,
		opts:     compose.Options{Workdir: dir},
		workdir:  dir,
		stdout:   out,
	}, out
}

func testListing(n int) string {
	var b strings.Builder
	b.WriteString("    Finished `test` profile [unoptimized] target(s)\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "tests::case_%02d\n", i)
	}
	return b.String()
}

func TestRunActionRecordsExitStatus(t *testing.T) {
	resetExit(t)

	r := &fakeRunner{fail: map[string]error{
		"clippy": &invoke.ExitError{Code: 101, Line: "cargo clippy"},
	}}
	s, _ := newTestSession(t, r)

	err := s.runAction(context.Background(), compose.Action{Kind: compose.Lint})
	if err == nil {
		t.Fatal("runAction() error = nil, want the child failure")
	}
	if exitStatus != 101 {
		t.Errorf("exitStatus = %d, want 101", exitStatus)
	}
	if len(r.runs) != 1 || !strings.Contains(r.runs[0].Line, "RUSTFLAGS=-Dwarnings cargo clippy") {
		t.Errorf("runs = %v", r.lines())
	}
}

func TestRunRelease(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		git      bool
		kind     compose.Kind
		execute  bool
		wantErr  string
		wantLine string
	}{
		{name: "Invalid level", level: "huge", git: true, kind: compose.Release, wantErr: "Release level"},
		{name: "Missing level", level: "", git: true, kind: compose.Release, wantErr: "Release level"},
		{name: "Not a git root", level: "patch", kind: compose.Release, wantErr: "git repository root"},
		{name: "Dry run release", level: "patch", git: true, kind: compose.Release, wantLine: "cargo release patch"},
		{name: "Executed release", level: "rc", git: true, kind: compose.Release, execute: true, wantLine: "cargo release rc --execute --no-verify"},
		{name: "Version bump", level: "minor", git: true, kind: compose.VersionBump, wantLine: "cargo release version minor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetExit(t)
			r := &fakeRunner{}
			s, _ := newTestSession(t, r)
			if tt.git {
				if err := os.Mkdir(filepath.Join(s.workdir, ".git"), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			writeFile(t, s.workdir, "Cargo.toml", "[workspace]\nmembers = [\"crates/core\"]\n\n[workspace.package]\nversion = \"0.1.1\"\n")

			err := s.runRelease(context.Background(), tt.kind, tt.level, tt.execute)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("runRelease() error = %v, want it to contain %q", err, tt.wantErr)
				}
				if len(r.runs) != 0 {
					t.Errorf("rejected release ran %v", r.lines())
				}
				return
			}
			if err != nil {
				t.Fatalf("runRelease() error = %v", err)
			}
			if len(r.runs) != 1 || !strings.HasSuffix(r.runs[0].Line, tt.wantLine) {
				t.Errorf("runs = %v, want one ending in %q", r.lines(), tt.wantLine)
			}
		})
	}
}

func TestRunReleaseChangelogEnv(t *testing.T) {
	r := &fakeRunner{}
	s, _ := newTestSession(t, r)
	if err := os.Mkdir(filepath.Join(s.workdir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := s.runRelease(context.Background(), compose.Release, "alpha", false); err != nil {
		t.Fatalf("runRelease() error = %v", err)
	}
	line := r.runs[0].Line
	for _, want := range []string{"GIT_CLIFF_CONFIG=", "GIT_CLIFF_WORKDIR=", "GIT_CLIFF_REPOSITORY=", "GIT_CLIFF_OUTPUT="} {
		if !strings.Contains(line, want) {
			t.Errorf("release line %q missing %s", line, want)
		}
	}
}

// ===== MIRI SHARD TESTS =====

func TestRunShard(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()
	cfg = Config{}

	tests := []struct {
		name      string
		opts      shardOptions
		listing   string
		wantNames []string
		wantRun   bool
		wantErr   string
	}{
		{
			name:      "First of ten jobs",
			opts:      shardOptions{job: 0, total: 10, pkg: "rsvim_core"},
			listing:   testListing(24),
			wantNames: []string{"tests::case_00", "tests::case_01"},
			wantRun:   true,
		},
		{
			name:    "Last job absorbs the remainder",
			opts:    shardOptions{job: 9, total: 10, pkg: "rsvim_core"},
			listing: testListing(24),
			wantNames: []string{
				"tests::case_18", "tests::case_19", "tests::case_20",
				"tests::case_21", "tests::case_22", "tests::case_23",
			},
			wantRun: true,
		},
		{
			name:      "Explicit list skips discovery",
			opts:      shardOptions{job: 1, total: 2, pkg: "rsvim_core", tests: "a, b,c ,d"},
			wantNames: []string{"c", "d"},
			wantRun:   true,
		},
		{
			name:    "Empty shard does not run",
			opts:    shardOptions{job: 0, total: 10, pkg: "rsvim_core"},
			listing: testListing(3),
			wantRun: false,
		},
		{
			name:    "Job out of range",
			opts:    shardOptions{job: 10, total: 10, pkg: "rsvim_core"},
			listing: testListing(24),
			wantErr: "out of range",
		},
		{
			name:    "Negative job",
			opts:    shardOptions{job: -1, total: 10, pkg: "rsvim_core"},
			listing: testListing(24),
			wantErr: "out of range",
		},
		{
			name:    "Package required",
			opts:    shardOptions{job: 0, total: 10},
			listing: testListing(24),
			wantErr: "package is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{listing: tt.listing}
			s, _ := newTestSession(t, r)

			err := s.runShard(context.Background(), tt.opts)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("runShard() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("runShard() error = %v", err)
			}
			if !tt.wantRun {
				if len(r.runs) != 0 {
					t.Errorf("empty shard ran %v", r.lines())
				}
				return
			}
			if len(r.runs) != 1 {
				t.Fatalf("runs = %v, want exactly one", r.lines())
			}
			line := r.runs[0].Line
			want := "-p rsvim_core " + strings.Join(tt.wantNames, " ")
			if !strings.HasSuffix(line, want) {
				t.Errorf("line = %q, want suffix %q", line, want)
			}
			if !strings.Contains(line, "MIRIFLAGS=") {
				t.Errorf("line = %q, want MIRIFLAGS", line)
			}
		})
	}
}

func TestRunShardConfigDefaults(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()
	cfg = Config{Miri: MiriConfig{Package: "rsvim_core", TotalJobs: 3}}

	r := &fakeRunner{listing: testListing(7)}
	s, _ := newTestSession(t, r)

	// job 2 of 3 owns case_04..case_06
	if err := s.runShard(context.Background(), shardOptions{job: 2}); err != nil {
		t.Fatalf("runShard() error = %v", err)
	}
	if len(r.runs) != 1 || !strings.HasSuffix(r.runs[0].Line, "tests::case_04 tests::case_05 tests::case_06") {
		t.Errorf("runs = %v", r.lines())
	}
}

func TestRunShardDiscoveryFailure(t *testing.T) {
	resetExit(t)
	r := &fakeRunner{listErr: errors.New("nextest missing")}
	s, _ := newTestSession(t, r)

	err := s.runShard(context.Background(), shardOptions{job: 0, total: 2, pkg: "rsvim_core"})
	if err == nil || !strings.Contains(err.Error(), "nextest missing") {
		t.Fatalf("runShard() error = %v, want discovery failure", err)
	}
	if exitStatus != 1 {
		t.Errorf("exitStatus = %d, want 1", exitStatus)
	}
}

func TestGenerateTests(t *testing.T) {
	r := &fakeRunner{listing: testListing(3)}
	s, out := newTestSession(t, r)

	if err := s.generateTests(context.Background()); err != nil {
		t.Fatalf("generateTests() error = %v", err)
	}
	if got, want := out.String(), "tests::case_00,tests::case_01,tests::case_02\n"; got != want {
		t.Errorf("generateTests() printed %q, want %q", got, want)
	}
}
