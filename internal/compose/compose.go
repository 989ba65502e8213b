// Package compose turns an action, the probed toolchain facts and user
// options into an ordered flag set, an environment plan and the command
// steps to run.
//
// Rules are applied in a fixed order and only ever append:
//
//  1. warnings as errors (lint)
//  2. windows symbol mangling (compiling actions on windows)
//  3. alternative linker selection (build, lint, document)
//  4. compilation cache wrapper (lint, test, list-tests, build)
//  5. action specific arguments and variables, then RUSTFLAGS
//  6. delivery of the variables, inline prefix or child environment
//
// No rule fails. A rule whose preconditions are not met is skipped and the
// skip is logged at warning level.
package compose

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"

	"devctl/internal/probe"
)

// Well known variable names and flags.
const (
	EnvRustFlags   = "RUSTFLAGS"
	EnvWrapper     = "RUSTC_WRAPPER"
	EnvRecache     = "SCCACHE_RECACHE"
	EnvBacktrace   = "RUST_BACKTRACE"
	EnvMiriFlags   = "MIRIFLAGS"
	FlagWarnings   = "-Dwarnings"
	FlagSymbolsV0  = "-Csymbol-mangling-version=v0"
	linkArgFuseLD  = "-Clink-arg=-fuse-ld="
	defaultLogVar  = "RUST_LOG"
	defaultLogLvl  = "trace"
	defaultBTValue = "1"
)

// DefaultMiriFlags disable host isolation and allow integer to pointer casts
// under the memory checker.
var DefaultMiriFlags = []string{"-Zmiri-disable-isolation", "-Zmiri-permissive-provenance"}

// linkerTriples maps platforms where the alternative linker is supported to
// their target triple.
var linkerTriples = map[probe.Platform]string{
	{OS: "linux", Arch: "amd64"}: "x86_64-unknown-linux-gnu",
	{OS: "linux", Arch: "arm64"}: "aarch64-unknown-linux-gnu",
}

// LinkerVar returns cargo's per-target linker override variable for triple.
func LinkerVar(triple string) string {
	return "CARGO_TARGET_" + strings.ToUpper(strings.ReplaceAll(triple, "-", "_")) + "_LINKER"
}

// Options are the user supplied switches that influence composition.
type Options struct {
	Recache   bool
	SkipCache bool
	NoLinker  bool

	// Test log defaults. Empty fields fall back to RUST_LOG=trace and
	// RUST_BACKTRACE=1.
	LogVar    string
	LogLevel  string
	Backtrace string

	MiriFlags    []string
	MiriFeatures []string

	// DocCrate is the start path served by the live-reload helper.
	DocCrate string

	// Workdir is the repository root used by release actions.
	Workdir         string
	ChangelogConfig string
	Changelog       string
}

// Composer composes plans for a fixed set of probed facts.
type Composer struct {
	facts    probe.Result
	delivery Delivery
	log      zerolog.Logger
}

// New returns a Composer for facts. The delivery strategy is chosen here,
// once, from the platform.
func New(facts probe.Result, log zerolog.Logger) *Composer {
	return &Composer{
		facts:    facts,
		delivery: DeliveryFor(facts.Platform),
		log:      log.With().Str("component", "compose").Logger(),
	}
}

// Compose builds the plan for action.
func (c *Composer) Compose(action Action, opts Options) Plan {
	plan := Plan{Action: action}
	tr := kindTraits[action.Kind]
	log := c.log.With().Str("action", action.Kind.String()).Logger()

	if tr.warnings {
		plan.Flags.Append(FlagWarnings)
	}
	if tr.compiles && c.facts.Platform.IsWindows() {
		plan.Flags.Append(FlagSymbolsV0)
	}
	if tr.linker {
		c.selectLinker(&plan, opts, log)
	}
	if tr.cache {
		c.selectCache(&plan, opts, log)
	}

	switch action.Kind {
	case Lint:
		plan.Steps = c.lintSteps(action, log)
	case Test:
		plan.Steps = c.testSteps(&plan, action, opts, log)
	case ListTests:
		plan.Steps = [][]string{{"cargo", "nextest", "list"}}
	case Build:
		plan.Steps = [][]string{buildArgs(action, log)}
	case Document:
		plan.Steps = c.docSteps(action, opts, log)
	case Release:
		plan.Steps = releaseSteps(&plan, action, opts, log)
	case VersionBump:
		step := []string{"cargo", "release", "version", action.Level}
		if action.Execute {
			step = append(step, "--execute")
		}
		plan.Steps = [][]string{step}
	default:
		log.Error().Msg("unknown action, nothing to run")
	}

	if len(plan.Flags) > 0 {
		plan.Env.Set(EnvRustFlags, plan.Flags.String())
	}

	plan.Prefix, plan.Environ = c.delivery.Deliver(plan.Env)
	log.Debug().
		Str("delivery", c.delivery.Name()).
		Strs("env", plan.Env.Names()).
		Str("flags", plan.Flags.String()).
		Msg("composed")
	return plan
}

func (c *Composer) selectLinker(plan *Plan, opts Options, log zerolog.Logger) {
	tools := c.facts.Tools
	triple, supported := linkerTriples[c.facts.Platform]
	switch {
	case opts.NoLinker:
		log.Info().Msg("alternative linker disabled, using default linker")
		return
	case !supported:
		log.Warn().Str("platform", c.facts.Platform.String()).Msg("alternative linker not supported on this platform, using default linker")
		return
	case tools.Linker == "":
		log.Warn().Msg("no alternative linker found, using default linker")
		return
	case tools.Driver == "":
		log.Warn().Str("linker", tools.LinkerName).Msg("linker driver not found, using default linker")
		return
	}

	plan.Env.Set(LinkerVar(triple), tools.Driver)
	plan.Flags.Append(linkArgFuseLD + tools.Linker)
	log.Info().Str("linker", tools.Linker).Str("driver", tools.Driver).Msg("using alternative linker")
}

func (c *Composer) selectCache(plan *Plan, opts Options, log zerolog.Logger) {
	wrapper := c.facts.Tools.Cache
	if opts.SkipCache {
		log.Info().Msg("compilation cache disabled")
		return
	}
	if wrapper == "" {
		log.Warn().Msg("compilation cache wrapper not found")
		return
	}
	if opts.Recache {
		plan.Env.Set(EnvRecache, "1")
	}
	plan.Env.Set(EnvWrapper, wrapper)
	log.Info().Str("wrapper", wrapper).Bool("recache", opts.Recache).Msg("using compilation cache")
}

func (c *Composer) lintSteps(action Action, log zerolog.Logger) [][]string {
	if action.Watch {
		if c.facts.Tools.Watcher != "" {
			log.Info().Msg("running lint as a service, watching file changes")
			return [][]string{{"bacon", "-j", "clippy-all", "--headless", "--all-features"}}
		}
		log.Warn().Msg("watcher not found, running lint once")
	}
	return [][]string{{"cargo", "clippy", "--workspace", "--all-features", "--all-targets"}}
}

func (c *Composer) testSteps(plan *Plan, action Action, opts Options, log zerolog.Logger) [][]string {
	names := Dedupe(action.Names)
	if len(names) == 0 {
		log.Info().Msg("running all test cases")
	} else {
		log.Info().Strs("names", names).Msg("running selected test cases")
	}

	if action.MiriPackage != "" {
		flags := opts.MiriFlags
		if len(flags) == 0 {
			flags = DefaultMiriFlags
		}
		plan.Env.Set(EnvMiriFlags, strings.Join(flags, " "))

		step := []string{"cargo", "+nightly", "miri", "nextest", "run"}
		step = append(step, jobArgs(action.Jobs)...)
		if len(opts.MiriFeatures) > 0 {
			step = append(step, "-F", strings.Join(opts.MiriFeatures, ","))
		}
		step = append(step, "--no-default-features", "-p", action.MiriPackage)
		step = append(step, names...)
		return [][]string{step}
	}

	plan.Env.Set(EnvBacktrace, orDefault(opts.Backtrace, defaultBTValue))
	plan.Env.Set(orDefault(opts.LogVar, defaultLogVar), orDefault(opts.LogLevel, defaultLogLvl))

	step := []string{"cargo", "nextest", "run"}
	step = append(step, jobArgs(action.Jobs)...)
	step = append(step, "--no-capture")
	if len(names) == 0 {
		step = append(step, "--all")
	} else {
		step = append(step, names...)
	}
	return [][]string{step}
}

func buildArgs(action Action, log zerolog.Logger) []string {
	step := []string{"cargo", "build"}
	profile := action.Profile
	switch profile {
	case ProfileRelease:
		step = append(step, "--release")
	case ProfileNightly:
		step = append(step, "--profile", string(ProfileNightly))
	default:
		profile = ProfileDebug
	}

	features := featureArgs(action)
	if len(features) == 0 {
		log.Info().Str("profile", string(profile)).Msg("building with default features")
	} else {
		log.Info().Str("profile", string(profile)).Strs("features", features).Msg("building")
	}
	return append(step, features...)
}

func featureArgs(action Action) []string {
	if action.AllFeatures {
		return []string{"--all-features"}
	}
	var out []string
	for _, f := range action.Features {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, "--features", f)
	}
	return out
}

func (c *Composer) docSteps(action Action, opts Options, log zerolog.Logger) [][]string {
	steps := [][]string{{"cargo", "doc"}}
	if c.facts.Tools.LiveReload != "" {
		serve := []string{"browser-sync", "start", "--ss", "target/doc", "-s", "target/doc", "--directory"}
		if opts.DocCrate != "" {
			serve = append(serve, "--startPath", opts.DocCrate)
		}
		steps = append(steps, append(serve, "--no-open"))
	} else {
		log.Warn().Msg("live-reload helper not found, documentation is built but not served")
	}

	if !action.Watch {
		log.Info().Msg("building documentation once")
		return steps
	}
	log.Info().Msg("building documentation as a service, watching file changes")
	return [][]string{{"cargo", "watch", "-s", JoinSteps(steps)}}
}

func releaseSteps(plan *Plan, action Action, opts Options, log zerolog.Logger) [][]string {
	if opts.Workdir != "" {
		plan.Env.Set("GIT_CLIFF_CONFIG", filepath.Join(opts.Workdir, orDefault(opts.ChangelogConfig, "cliff.toml")))
		plan.Env.Set("GIT_CLIFF_WORKDIR", opts.Workdir)
		plan.Env.Set("GIT_CLIFF_REPOSITORY", opts.Workdir)
		plan.Env.Set("GIT_CLIFF_OUTPUT", filepath.Join(opts.Workdir, orDefault(opts.Changelog, "CHANGELOG.md")))
	}

	step := []string{"cargo", "release", action.Level}
	if action.Execute {
		log.Info().Str("level", action.Level).Msg("releasing, no dry run")
		step = append(step, "--execute", "--no-verify")
	} else {
		log.Info().Str("level", action.Level).Msg("releasing in dry run")
	}
	return [][]string{step}
}

// JoinSteps renders argv steps as one shell command line joined by &&.
func JoinSteps(steps [][]string) string {
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		if len(step) == 0 {
			continue
		}
		parts = append(parts, shellquote.Join(step...))
	}
	return strings.Join(parts, " && ")
}

// Dedupe drops repeated names, keeping the first occurrence of each.
func Dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func jobArgs(jobs int) []string {
	if jobs <= 0 {
		return nil
	}
	return []string{"-j", strconv.Itoa(jobs)}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
