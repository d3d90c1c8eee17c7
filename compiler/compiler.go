// Package compiler runs the real Rust compiler on behalf of the driver and
// reads what it can about an invocation from its arguments.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Callbacks are the lifecycle hooks around one compilation.
type Callbacks interface {
	// Config may rewrite the argument vector before the compiler starts.
	Config(args []string) []string
	// AfterCompile runs once the compiler has exited successfully, so every
	// artifact it was asked to emit (metadata included) exists on disk.
	AfterCompile(ctx context.Context, inv *Invocation) error
}

// NoopCallbacks compiles the unit exactly as requested.
type NoopCallbacks struct{}

func (NoopCallbacks) Config(args []string) []string { return args }

func (NoopCallbacks) AfterCompile(context.Context, *Invocation) error { return nil }

// ExitError reports that the compiler ran and exited unsuccessfully. Its
// diagnostics have already been written to the inherited streams.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("compiler exited with status %d", e.Code)
}

// Compiler is one pending invocation of the real compiler.
type Compiler struct {
	// Path is the compiler executable. Empty means "rustc" from PATH.
	Path string
	// Args excludes argv[0].
	Args []string
	// Env is appended to the current environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c *Compiler) path() string {
	if c.Path == "" {
		return "rustc"
	}
	return c.Path
}

// Invocation parses the compiler's current argument vector.
func (c *Compiler) Invocation() Invocation {
	return ParseInvocation(c.Args)
}

// Run compiles the unit, calling cb around the compilation. A compiler that
// exits non-zero yields an *ExitError and AfterCompile is skipped.
func (c *Compiler) Run(ctx context.Context, cb Callbacks) error {
	if cb == nil {
		cb = NoopCallbacks{}
	}

	args := cb.Config(append([]string(nil), c.Args...))

	cmd := exec.CommandContext(ctx, c.path(), args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("running %s: %w", c.path(), err)
	}

	inv := ParseInvocation(args)
	return cb.AfterCompile(ctx, &inv)
}
