package main

import (
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"devctl/internal/compose"
	"devctl/internal/partition"
	"devctl/internal/probe"
)

// Get a variable else -> environment variable -> ""
func GetVar(name string, target_name string) string {

	name = strings.Trim(name, "$")
	switch name {
	case "TIMESTAMP":
		return time.Now().Format("2006-01-02 15:04:05")
	case "@":
		return target_name
	case "cwd":
		path, _ := os.Getwd()
		return path
	default:
		ret, exists := cfg.Vars[name]
		if exists {
			return string(ret)
		}
		return os.Getenv(name)
	}

}

// Get target by name. fmt falls back to the built-in formatter list.
func GetTarget(name string) Target {
	target, ok := cfg.Targets[name]
	if !ok && name == formatTarget {
		return defaultFormat
	}
	return target
}

const formatTarget = "fmt"

var defaultFormat = Target{
	Run: []string{
		"cargo fmt",
		"taplo fmt",
		"prettier --write *.md **/*.ts",
		"tsc",
	},
}

// probeNames merges configured tool names over the platform defaults.
func probeNames(tools ToolsConfig) probe.Names {
	names := probe.DefaultNames(runtime.GOOS)
	if tools.Cache != "" {
		names.Cache = tools.Cache
	}
	if len(tools.Linkers) > 0 {
		names.Linkers = tools.Linkers
	}
	if tools.Driver != "" {
		names.Driver = tools.Driver
	}
	if tools.LiveReload != "" {
		names.LiveReload = tools.LiveReload
	}
	if tools.Watcher != "" {
		names.Watcher = tools.Watcher
	}
	return names
}

// composeOptions combines global switches with configured defaults.
func composeOptions(g globalOptions, workdir string) compose.Options {
	return compose.Options{
		Recache:         g.recache,
		SkipCache:       g.skipCache,
		NoLinker:        g.noLinker,
		LogVar:          cfg.Test.LogVar,
		LogLevel:        cfg.Test.LogLevel,
		Backtrace:       cfg.Test.Backtrace,
		MiriFlags:       cfg.Miri.Flags,
		MiriFeatures:    cfg.Miri.Features,
		DocCrate:        cfg.Doc.Crate,
		Workdir:         workdir,
		ChangelogConfig: cfg.Release.ChangelogConfig,
		Changelog:       cfg.Release.Changelog,
	}
}

func totalJobs(flag int) int {
	if flag > 0 {
		return flag
	}
	if cfg.Miri.TotalJobs > 0 {
		return cfg.Miri.TotalJobs
	}
	return partition.DefaultTotalJobs
}

// splitList splits a comma or space separated flag value.
func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func isReleaseLevel(level string) bool {
	return slices.Contains(compose.ReleaseLevels, level)
}
