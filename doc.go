/*
Package main implements devctl, the development command runner for a Cargo
workspace.

devctl turns a handful of short commands into the cargo invocations a
contributor would otherwise type by hand, adding the compiler flags and
environment variables that the local toolchain supports.

# Toolchain Probing

At startup devctl looks for optional helpers on PATH:

  - sccache: registered as RUSTC_WRAPPER for compiling actions
  - mold, then lld (ld.lld, ld64.lld or lld-link): passed to rustc through
    -Clink-arg=-fuse-ld=<path>
  - clang: the linker driver, set as CARGO_TARGET_<TRIPLE>_LINKER on
    linux/amd64 and linux/arm64
  - bacon: watches files for `clippy --watch`
  - browser-sync: serves target/doc for `doc`

A missing helper is never an error; the feature it enables is skipped with a
log line.

# Environment Composition

Every action resolves an ordered set of variables. RUSTFLAGS is composed from
-Dwarnings, -Csymbol-mangling-version=v0 on Windows and the linker flag, and is
always set last. On POSIX systems the variables are rendered as an inline
NAME=value prefix of the shell line; on Windows they are added to the child
process environment.

# CLI Commands

  - clippy, c, lint: cargo clippy with warnings as errors (--watch uses bacon)
  - test, t: cargo nextest run for all or the named cases (--list, --miri)
  - build, b: debug, --release or --nightly builds with --features
  - doc, d: cargo doc, served by browser-sync when installed
  - fmt, f: the fmt task from devctl.yaml, or cargo fmt, taplo, prettier, tsc
  - release, r: cargo release LEVEL with git-cliff variables (--execute)
  - bump: cargo release version LEVEL
  - miri: run job --job of --total of the miri test suite (--generate prints
    the list)
  - run, list: user tasks from devctl.yaml

Global flags: --config, --verbose, --dry-run, --recache, --no-linker and
--skip-cache.

# Configuration

devctl reads devctl.yaml from the working directory when present:

	vars:
	  PKG: rsvim_core

	tools:
	  linkers: [mold, ld.lld]

	test:
	  log_var: RSVIM_LOG
	  jobs: 4

	miri:
	  package: rsvim_core
	  total_jobs: 10

	targets:
	  check:
	    run:
	      - "cargo check -p $PKG"

Task commands expand $VAR and ${VAR} from vars, then from the environment.
$@ is the task name, $cwd the working directory and $TIMESTAMP the current
time.

# Exit Status

devctl exits with the status of the first failing child process, or 1 when
devctl itself rejects the command.
*/
package main
