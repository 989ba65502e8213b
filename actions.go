package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"devctl/internal/cargo"
	"devctl/internal/compose"
	"devctl/internal/invoke"
	"devctl/internal/logging"
	"devctl/internal/partition"
	"devctl/internal/probe"
)

// globalOptions are the switches shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
	dryRun     bool
	recache    bool
	noLinker   bool
	skipCache  bool
}

// commandRunner runs composed commands and lists tests.
type commandRunner interface {
	invoke.Runner
	partition.Lister
}

// session carries everything one command needs: the composer built from the
// probed toolchain and the runner. It lives for a single command.
type session struct {
	log      zerolog.Logger
	composer *compose.Composer
	runner   commandRunner
	opts     compose.Options
	workdir  string
	stdout   io.Writer
}

func newSession(g globalOptions) (*session, error) {
	profile := logging.ProfileRuntime
	if g.verbose {
		profile = logging.ProfileVerbose
	}
	logger := logging.Configure(profile)

	if err := loadConfig(g.configPath); err != nil {
		return nil, err
	}

	workdir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	facts := probe.Run(probeNames(cfg.Tools))
	logger.Debug().
		Str("platform", facts.Platform.String()).
		Str("cache", facts.Tools.Cache).
		Str("linker", facts.Tools.Linker).
		Str("driver", facts.Tools.Driver).
		Msg("probed toolchain")

	return &session{
		log:      logger,
		composer: compose.New(facts, logger),
		runner:   invoke.NewShellRunner(facts.Platform, g.dryRun, logger),
		opts:     composeOptions(g, workdir),
		workdir:  workdir,
		stdout:   os.Stdout,
	}, nil
}

// runAction composes and runs one action, recording the child's exit status.
func (s *session) runAction(ctx context.Context, action compose.Action) error {
	plan := s.composer.Compose(action, s.opts)
	err := s.runner.Run(ctx, invoke.Render(plan))
	recordExit(err)
	return err
}

func (s *session) runRelease(ctx context.Context, kind compose.Kind, level string, execute bool) error {
	if !isReleaseLevel(level) {
		return RaiseException(kind.String(), INVALID_LEVEL, strconv.Quote(level))
	}
	if info, err := os.Stat(filepath.Join(s.workdir, ".git")); err != nil || !info.IsDir() {
		return RaiseException(kind.String(), NOT_GIT_ROOT, s.workdir)
	}
	s.previewVersion(level)
	return s.runAction(ctx, compose.Action{Kind: kind, Level: level, Execute: execute})
}

// previewVersion logs the version a release level moves to.
func (s *session) previewVersion(level string) {
	manifest, err := cargo.Load(filepath.Join(s.workdir, cargo.ManifestName))
	if err != nil {
		s.log.Warn().Err(err).Msg("cannot read workspace manifest")
		return
	}
	current, ok := manifest.Version()
	if !ok {
		s.log.Warn().Msg("workspace manifest has no version")
		return
	}
	next, err := cargo.NextVersion(current, level)
	if err != nil {
		s.log.Warn().Err(err).Str("current", current).Msg("cannot compute next version")
		return
	}
	s.log.Info().Str("current", current).Str("next", next).Str("level", level).Msg("version bump")
}

// shardOptions select one job of a memory-checked test run.
type shardOptions struct {
	job   int
	total int
	pkg   string
	tests string
	jobs  int
}

func (s *session) testList(ctx context.Context, raw string) ([]string, error) {
	if strings.TrimSpace(raw) != "" {
		return partition.ParseList(raw), nil
	}
	return partition.Discover(ctx, s.runner)
}

// generateTests prints the discovered test list, comma separated.
func (s *session) generateTests(ctx context.Context) error {
	tests, err := partition.Discover(ctx, s.runner)
	if err != nil {
		recordExit(err)
		return err
	}
	s.log.Info().Int("tests", len(tests)).Msg("discovered tests")
	_, err = fmt.Fprintln(s.stdout, strings.Join(tests, ","))
	return err
}

// runShard runs the partition of the test list owned by one job.
func (s *session) runShard(ctx context.Context, o shardOptions) error {
	pkg := o.pkg
	if pkg == "" {
		pkg = cfg.Miri.Package
	}
	if pkg == "" {
		return RaiseException("miri", INVALID_JOB, "a package is required")
	}
	s.checkPackage(pkg)

	tests, err := s.testList(ctx, o.tests)
	if err != nil {
		recordExit(err)
		return err
	}

	total := totalJobs(o.total)
	r, err := partition.Bounds(len(tests), total, o.job)
	if err != nil {
		return RaiseException("miri", INVALID_JOB, err.Error())
	}
	s.log.Info().
		Int("total_tests", len(tests)).
		Int("tests_per_job", len(tests)/total).
		Bool("last_job", o.job == total-1).
		Int("start", r.Start).
		Int("end", r.End).
		Msg("partitioned tests")

	shard, err := partition.Partition(tests, total, o.job)
	if err != nil {
		return RaiseException("miri", INVALID_JOB, err.Error())
	}
	if len(shard) == 0 {
		s.log.Warn().Int("job", o.job).Msg("job owns no tests")
		return nil
	}

	return s.runAction(ctx, compose.Action{
		Kind:        compose.Test,
		MiriPackage: pkg,
		Names:       shard,
		Jobs:        o.jobs,
	})
}

// checkPackage warns when pkg is not a member of the workspace.
func (s *session) checkPackage(pkg string) {
	manifest, err := cargo.Load(filepath.Join(s.workdir, cargo.ManifestName))
	if err != nil {
		s.log.Debug().Err(err).Msg("skipping package check")
		return
	}
	if !manifest.HasMember(pkg) {
		s.log.Warn().Str("package", pkg).Msg("package is not a workspace member")
	}
}
