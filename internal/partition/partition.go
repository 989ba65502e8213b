// Package partition splits an ordered test list into a fixed number of
// contiguous, disjoint jobs so that independent CI workers can each run one
// shard under the memory-checking test driver.
//
// The split is a pure function of (tests, total, index). Every job except the
// last receives exactly len(tests)/total identifiers; the last job absorbs the
// remainder. Concatenating all jobs in index order reproduces the input.
package partition

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DefaultTotalJobs is the number of shards used when none is configured.
const DefaultTotalJobs = 10

// Range is the half-open slice [Start, End) owned by a job.
type Range struct {
	Start int
	End   int
}

// Len returns the number of identifiers in the range.
func (r Range) Len() int { return r.End - r.Start }

// Bounds computes the slice bounds owned by job index for a list of n tests
// split into total jobs.
func Bounds(n, total, index int) (Range, error) {
	if total < 1 {
		return Range{}, fmt.Errorf("total jobs must be at least 1, got %d", total)
	}
	if index < 0 || index >= total {
		return Range{}, fmt.Errorf("job index %d out of range [0,%d)", index, total)
	}
	if n < 0 {
		return Range{}, fmt.Errorf("negative test count %d", n)
	}

	perJob := n / total
	start := index * perJob
	if index == total-1 {
		return Range{Start: start, End: n}, nil
	}
	return Range{Start: start, End: start + perJob}, nil
}

// Partition returns the identifiers owned by job index. The result shares no
// backing storage with tests.
func Partition(tests []string, total, index int) ([]string, error) {
	r, err := Bounds(len(tests), total, index)
	if err != nil {
		return nil, err
	}
	out := make([]string, r.Len())
	copy(out, tests[r.Start:r.End])
	return out, nil
}

// ParseList splits a comma separated test list, trimming whitespace and
// dropping empty entries. Duplicates are kept.
func ParseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// identifierPattern matches one test path as printed by the test driver's
// list mode, e.g. "buf_tests::insert_at_end" or "rsvim_core::ui::tree".
// Status lines ("Finished ...", "Starting 120 tests") contain spaces and are
// rejected.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z0-9_]+)*$`)

// ParseListing extracts test identifiers from the output of the driver's
// list mode, preserving their order.
func ParseListing(output string) []string {
	lines := strings.Split(output, "\n")
	tests := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !identifierPattern.MatchString(line) {
			continue
		}
		tests = append(tests, line)
	}
	return tests
}

// Lister runs an external command and returns its standard output.
type Lister interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ListCommand is the driver invocation used to enumerate every test case.
var ListCommand = []string{"cargo", "+nightly", "nextest", "list", "--color=never"}

// Discover enumerates the full ordered test list through the external test
// driver.
func Discover(ctx context.Context, l Lister) ([]string, error) {
	out, err := l.Output(ctx, ListCommand[0], ListCommand[1:]...)
	if err != nil {
		return nil, fmt.Errorf("list tests failed: %w", err)
	}
	return ParseListing(string(out)), nil
}
