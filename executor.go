package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"devctl/internal/invoke"
)

// ExecuteCommand runs one task command. "cd <dir>" changes the working
// directory of devctl itself so later commands run there.
func ExecuteCommand(ctx context.Context, r invoke.Runner, command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("empty command")
	}

	if strings.HasPrefix(command, "cd ") {
		dir := strings.TrimSpace(strings.TrimPrefix(command, "cd "))
		if dir == "" {
			return errors.New("no directory specified for cd")
		}
		log.Info().Msg(command)
		return os.Chdir(dir)
	}

	return r.Run(ctx, invoke.Invocation{Line: command})
}

func ExecuteAll(ctx context.Context, r invoke.Runner, name string, target *Target) error {
	for _, cmd := range target.Run {
		cmd = ParseVars(cmd, name)
		err := ExecuteCommand(ctx, r, cmd)
		if err == nil {
			continue
		}

		// If error then (get target on_error || cmd stderr)
		outerr := fmt.Sprintf("in %s -> \n", name)
		if strings.TrimSpace(target.Onerror) == "" {
			outerr += err.Error()
		} else {
			outerr += target.Onerror
		}

		if SkipError(target.ContinueOnError) {
			log.Warn().Msg(outerr)
			continue
		}
		recordExit(err)
		return RaiseException(name, TARGET_ERROR, outerr)
	}
	return nil
}

func (t *Target) RunDeps(ctx context.Context, r invoke.Runner, seen map[string]bool) error {
	for _, dep := range t.Deps {
		// if dep is file
		if strings.Contains(dep, ".") {
			if _, err := os.Stat(dep); err != nil {
				log.Warn().Str("dep", dep).Msg("file dependency missing")
			}
			continue
		}
		if err := runTarget(ctx, r, dep, seen); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) RunPrologue(ctx context.Context, r invoke.Runner) error {
	if err := c.Prologue.RunDeps(ctx, r, map[string]bool{}); err != nil {
		return err
	}
	return ExecuteAll(ctx, r, "prologue", &c.Prologue)
}

func (c *Config) RunEpilogue(ctx context.Context, r invoke.Runner) error {
	if err := c.Epilogue.RunDeps(ctx, r, map[string]bool{}); err != nil {
		return err
	}
	return ExecuteAll(ctx, r, "epilogue", &c.Epilogue)
}

// runTarget runs name after its deps. seen holds the targets already run in
// this chain so that each target runs once and cycles stop.
func runTarget(ctx context.Context, r invoke.Runner, name string, seen map[string]bool) error {
	if seen[name] {
		return nil
	}
	seen[name] = true

	target := GetTarget(name)
	if target.Run == nil && target.Deps == nil {
		return RaiseException(name, TARGET_NOT_FOUND, name)
	}

	if err := target.RunDeps(ctx, r, seen); err != nil {
		return err
	}
	return ExecuteAll(ctx, r, name, &target)
}

// RunTargets runs each named target wrapped by the prologue and epilogue.
func RunTargets(ctx context.Context, r invoke.Runner, names []string) error {
	if err := cfg.RunPrologue(ctx, r); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, name := range names {
		if err := runTarget(ctx, r, name, seen); err != nil {
			return err
		}
	}
	return cfg.RunEpilogue(ctx, r)
}

type targetInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Commands int      `json:"commands" yaml:"commands"`
	Deps     []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func targetInfos() []targetInfo {
	targets := map[string]Target{formatTarget: GetTarget(formatTarget)}
	for name, target := range cfg.Targets {
		targets[name] = target
	}

	infos := make([]targetInfo, 0, len(targets))
	for name, target := range targets {
		infos = append(infos, targetInfo{
			Name:     name,
			Commands: len(target.Run),
			Deps:     target.Deps,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func listTargets(w io.Writer, format string) error {
	switch format {
	case "json":
		return listTargetsJSON(w)
	case "yaml":
		return listTargetsYAML(w)
	default: // table
		return listTargetsTable(w)
	}
}

func listTargetsTable(w io.Writer) error {
	infos := targetInfos()
	_, _ = fmt.Fprintln(w, "Available targets:")
	_, _ = fmt.Fprintln(w, "------------------")

	// Find max name length for formatting
	maxNameLen := 0
	for _, info := range infos {
		if len(info.Name) > maxNameLen {
			maxNameLen = len(info.Name)
		}
	}

	for _, info := range infos {
		padding := strings.Repeat(" ", maxNameLen-len(info.Name)+2)
		deps := ""
		if len(info.Deps) > 0 {
			deps = fmt.Sprintf(" (depends: %s)", strings.Join(info.Deps, ", "))
		}
		_, _ = fmt.Fprintf(w, "  %s%s%d commands%s\n", info.Name, padding, info.Commands, deps)
	}

	_, _ = fmt.Fprintf(w, "\nTotal: %d targets\n", len(infos))
	return nil
}

func listTargetsJSON(w io.Writer) error {
	infos := targetInfos()
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"targets": infos,
		"total":   len(infos),
	})
}

func listTargetsYAML(w io.Writer) error {
	infos := targetInfos()
	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(map[string]interface{}{
		"targets": infos,
		"total":   len(infos),
	})
}
