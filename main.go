package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"devctl/internal/compose"
	"devctl/internal/logging"
)

const (
	version           = "0.1.0"
	defaultConfigFile = "devctl.yaml"
)

var cfg Config

func main() {
	// initialize exceptions
	InitExceptions()

	app := newApp()
	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitStatus == 0 {
			exitStatus = 1
		}
	}
	os.Exit(exitStatus)
}

// loadConfig reads the config file and its includes into cfg. Without an
// explicit path a missing devctl.yaml is not an error.
func loadConfig(path string) error {
	cfg = Config{}
	required := path != ""
	if !required {
		path = defaultConfigFile
	}

	if err := decodeConfigFile(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return RaiseException("config", FILE_NOT_FOUND, path)
		}
		return orpheus.ValidationError("config", err.Error())
	}

	// load includes
	includes := append([]string(nil), cfg.Includes...)
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := decodeConfigFile(inc); err != nil {
			log.Warn().Err(err).Msgf("cannot load %s", inc)
		}
	}
	return nil
}

func decodeConfigFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func newApp() *orpheus.App {
	app := orpheus.New("devctl").
		SetDescription("Compose and run cargo lint/test/build/doc/release workflows").
		SetVersion(version)

	app.AddGlobalFlag("config", "c", "", "Config file (default devctl.yaml when present)")
	app.AddGlobalBoolFlag("verbose", "v", false, "Verbose logging")
	app.AddGlobalBoolFlag("dry-run", "n", false, "Print commands without running them")
	app.AddGlobalBoolFlag("recache", "r", false, "Rebuild all sccache caches")
	app.AddGlobalBoolFlag("no-linker", "l", false, "Build without the alternative linker")
	app.AddGlobalBoolFlag("skip-cache", "s", false, "Build without sccache")

	for _, name := range []string{"clippy", "c", "lint"} {
		app.AddCommand(orpheus.NewCommand(name, "Run cargo clippy with warnings as errors").
			SetHandler(clippyCommand).
			AddBoolFlag("watch", "w", false, "Run as a service and watch file changes"))
	}

	for _, name := range []string{"test", "t"} {
		app.AddCommand(orpheus.NewCommand(name, "Run cargo nextest, all cases unless names are given").
			SetHandler(testCommand).
			AddBoolFlag("list", "L", false, "List all test cases instead of running them").
			AddFlag("miri", "m", "", "Run under miri for the given package").
			AddIntFlag("jobs", "j", 0, "Number of test threads"))
	}

	for _, name := range []string{"build", "b"} {
		app.AddCommand(orpheus.NewCommand(name, "Build the debug, release or nightly profile").
			SetHandler(buildCommand).
			AddBoolFlag("release", "R", false, "Build the release profile").
			AddBoolFlag("nightly", "N", false, "Build the nightly profile").
			AddFlag("features", "f", "", "Comma separated features to enable").
			AddBoolFlag("all-features", "a", false, "Build with all features"))
	}

	for _, name := range []string{"doc", "d"} {
		app.AddCommand(orpheus.NewCommand(name, "Build documentation and serve it when browser-sync is installed").
			SetHandler(docCommand).
			AddBoolFlag("watch", "w", false, "Rebuild documentation on file changes"))
	}

	for _, name := range []string{"fmt", "f"} {
		app.AddCommand(orpheus.NewCommand(name, "Run the configured formatters").
			SetHandler(fmtCommand))
	}

	for _, name := range []string{"release", "r"} {
		app.AddCommand(orpheus.NewCommand(name, "Run cargo release for LEVEL (alpha, beta, rc, major, minor, patch)").
			SetHandler(releaseCommand).
			AddBoolFlag("execute", "e", false, "Publish for real, skipping verification"))
	}

	app.AddCommand(orpheus.NewCommand("bump", "Bump the workspace version for LEVEL").
		SetHandler(bumpCommand).
		AddBoolFlag("execute", "e", false, "Write the new version"))

	app.AddCommand(orpheus.NewCommand("miri", "Run one job of the sharded miri test suite").
		SetHandler(miriCommand).
		AddBoolFlag("generate", "g", false, "Print the comma separated test list and exit").
		AddIntFlag("job", "j", -1, "Job index in [0, total)").
		AddIntFlag("total", "k", 0, "Total number of jobs").
		AddFlag("package", "p", "", "Package to test").
		AddFlag("tests", "T", "", "Comma separated test list, discovered when empty").
		AddIntFlag("threads", "J", 0, "Number of test threads per job"))

	app.AddCommand(orpheus.NewCommand("run", "Run tasks from the config file").
		SetHandler(runCommand))

	app.AddCommand(orpheus.NewCommand("list", "List tasks from the config file").
		SetHandler(listCommand).
		AddFlag("format", "o", "table", "Output format: table, json or yaml"))

	return app
}

func globalsFrom(ctx *orpheus.Context) globalOptions {
	return globalOptions{
		configPath: ctx.GetGlobalFlagString("config"),
		verbose:    ctx.GetGlobalFlagBool("verbose"),
		dryRun:     ctx.GetGlobalFlagBool("dry-run"),
		recache:    ctx.GetGlobalFlagBool("recache"),
		noLinker:   ctx.GetGlobalFlagBool("no-linker"),
		skipCache:  ctx.GetGlobalFlagBool("skip-cache"),
	}
}

func clippyCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	return s.runAction(context.Background(), compose.Action{
		Kind:  compose.Lint,
		Watch: ctx.GetFlagBool("watch"),
	})
}

func testCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	if ctx.GetFlagBool("list") {
		return s.runAction(context.Background(), compose.Action{Kind: compose.ListTests})
	}

	jobs := ctx.GetFlagInt("jobs")
	if jobs <= 0 {
		jobs = cfg.Test.Jobs
	}
	return s.runAction(context.Background(), compose.Action{
		Kind:        compose.Test,
		Names:       ctx.Args,
		Jobs:        jobs,
		MiriPackage: ctx.GetFlagString("miri"),
	})
}

func buildCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	profile := compose.ProfileDebug
	switch {
	case ctx.GetFlagBool("release"):
		profile = compose.ProfileRelease
	case ctx.GetFlagBool("nightly"):
		profile = compose.ProfileNightly
	}
	return s.runAction(context.Background(), compose.Action{
		Kind:        compose.Build,
		Profile:     profile,
		Features:    splitList(ctx.GetFlagString("features")),
		AllFeatures: ctx.GetFlagBool("all-features"),
	})
}

func docCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	return s.runAction(context.Background(), compose.Action{
		Kind:  compose.Document,
		Watch: ctx.GetFlagBool("watch"),
	})
}

func fmtCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	return runTarget(context.Background(), s.runner, formatTarget, map[string]bool{})
}

func levelArg(ctx *orpheus.Context) string {
	if len(ctx.Args) == 0 {
		return ""
	}
	return ctx.Args[0]
}

func releaseCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	return s.runRelease(context.Background(), compose.Release, levelArg(ctx), ctx.GetFlagBool("execute"))
}

func bumpCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	return s.runRelease(context.Background(), compose.VersionBump, levelArg(ctx), ctx.GetFlagBool("execute"))
}

func miriCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	if ctx.GetFlagBool("generate") {
		return s.generateTests(context.Background())
	}
	return s.runShard(context.Background(), shardOptions{
		job:   ctx.GetFlagInt("job"),
		total: ctx.GetFlagInt("total"),
		pkg:   ctx.GetFlagString("package"),
		tests: ctx.GetFlagString("tests"),
		jobs:  ctx.GetFlagInt("threads"),
	})
}

func runCommand(ctx *orpheus.Context) error {
	s, err := newSession(globalsFrom(ctx))
	if err != nil {
		return err
	}
	if len(ctx.Args) == 0 {
		return listTargets(s.stdout, "table")
	}
	return RunTargets(context.Background(), s.runner, ctx.Args)
}

func listCommand(ctx *orpheus.Context) error {
	logging.Configure(logging.ProfileRuntime)
	if err := loadConfig(ctx.GetGlobalFlagString("config")); err != nil {
		return err
	}
	return listTargets(os.Stdout, ctx.GetFlagString("format"))
}
