// Package invoke renders composed plans into shell command lines and runs
// them, passing the child's exit status back unchanged.
package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"devctl/internal/compose"
	"devctl/internal/probe"
)

// Invocation is a fully rendered command.
type Invocation struct {
	// Line is the command line handed to the shell, including any inline
	// NAME=value prefix.
	Line string
	// Env holds NAME=value entries added to the child's environment.
	Env []string
}

func (inv Invocation) String() string { return inv.Line }

// Render joins a plan's prefix and steps into one command line.
func Render(plan compose.Plan) Invocation {
	line := compose.JoinSteps(plan.Steps)
	if len(plan.Prefix) > 0 {
		line = strings.TrimSpace(strings.Join(plan.Prefix, " ") + " " + line)
	}
	env := make([]string, len(plan.Environ))
	copy(env, plan.Environ)
	return Invocation{Line: line, Env: env}
}

// ExitError reports a child process that ran and failed.
type ExitError struct {
	Code int
	Line string
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d: %s", e.Code, e.Line)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit status carried by err: 0 for nil, the
// child's status for an *ExitError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Runner executes rendered invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ShellRunner runs invocations through the platform shell, streaming the
// child's output.
type ShellRunner struct {
	Platform probe.Platform
	Stdout   io.Writer
	Stderr   io.Writer
	Stdin    io.Reader
	DryRun   bool
	Log      zerolog.Logger
}

// NewShellRunner returns a runner wired to the process's standard streams.
func NewShellRunner(p probe.Platform, dryRun bool, log zerolog.Logger) *ShellRunner {
	return &ShellRunner{
		Platform: p,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Stdin:    os.Stdin,
		DryRun:   dryRun,
		Log:      log.With().Str("component", "invoke").Logger(),
	}
}

func (r *ShellRunner) command(ctx context.Context, line string) *exec.Cmd {
	if r.Platform.IsWindows() {
		// #nosec G204 - composed developer commands are executed by design
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	// #nosec G204 - composed developer commands are executed by design
	return exec.CommandContext(ctx, "/bin/sh", "-c", line)
}

// Run executes inv and blocks until the child exits.
func (r *ShellRunner) Run(ctx context.Context, inv Invocation) error {
	if strings.TrimSpace(inv.Line) == "" {
		return errors.New("empty command")
	}
	for _, kv := range inv.Env {
		r.Log.Info().Str("env", kv).Msg("set env")
	}
	r.Log.Info().Msg(inv.Line)
	if r.DryRun {
		_, _ = fmt.Fprintf(r.Stdout, "[DRY RUN] Would execute: %s\n", inv.Line)
		return nil
	}

	cmd := r.command(ctx, inv.Line)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Stdin = r.Stdin
	return wrapRunError(cmd.Run(), inv.Line)
}

// Output runs name with args directly, without a shell, and returns its
// standard output. Dry-run does not apply: listing commands have no side
// effects.
func (r *ShellRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.Log.Debug().Msg(line)
	if err := wrapRunError(cmd.Run(), line); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func wrapRunError(err error, line string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Line: line, Err: err}
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return &ExitError{Code: 127, Line: line, Err: err}
	}
	return err
}
