// Package driver is the gate that cargo runs in place of the real compiler.
// For every compilation unit it either runs the plugin or hands the unit to
// the real compiler unchanged.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"rustcplugin/compiler"
	"rustcplugin/config"
	"rustcplugin/observability"
	"rustcplugin/plugin"
	"rustcplugin/utils/logger"
)

// IceExitCode is the exit status for a panic inside the plugin, the same
// status rustc uses for an internal compiler error.
const IceExitCode = 101

// ProtocolError means the coordinator and the gate disagree about the
// environment contract, e.g. PLUGIN_ARGS is missing or does not decode.
type ProtocolError struct {
	Var string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("driver protocol error: %s: %v", e.Var, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Prepared is a gate invocation after the wrapper calling convention has
// been undone.
type Prepared struct {
	// Compiler is the real compiler to run.
	Compiler string
	// WrapperMode is set when cargo passed the compiler path as argv[1].
	WrapperMode bool
	// VersionQuery is set for -V/--version, which the gate answers itself.
	VersionQuery bool
	// Args excludes argv[0] and the wrapped compiler path.
	Args []string
}

// IsWrapperInvocation reports whether argv follows cargo's RUSTC_WRAPPER
// convention, i.e. argv[1] is a path to a compiler named rustc.
func IsWrapperInvocation(argv []string) bool {
	if len(argv) < 2 {
		return false
	}
	base := filepath.Base(argv[1])
	return strings.TrimSuffix(base, filepath.Ext(base)) == "rustc"
}

// Prepare strips the wrapped compiler path and the exec-hash flag from argv
// and injects --sysroot when the arguments do not already carry one.
func Prepare(ctx context.Context, argv []string, lookup compiler.Lookup) (*Prepared, error) {
	p := &Prepared{}

	rest := argv
	if len(rest) > 0 {
		rest = rest[1:]
	}
	if IsWrapperInvocation(argv) {
		p.WrapperMode = true
		p.Compiler = argv[1]
		rest = rest[1:]
	} else if rustc, ok := lookup("RUSTC"); ok && rustc != "" {
		p.Compiler = rustc
	} else {
		p.Compiler = "rustc"
	}

	p.Args = stripExecHash(rest)

	// cargo's `-vV` check wants the real compiler's verbose version.
	if !isSelfQuery(p.Args) {
		for _, arg := range p.Args {
			if arg == "-V" || arg == "--version" {
				p.VersionQuery = true
				return p, nil
			}
		}
	}

	resolver := &compiler.SysrootResolver{Lookup: lookup}
	sysroot, fromArg, err := resolver.Resolve(ctx, p.Args)
	if err != nil {
		return nil, err
	}
	if !fromArg {
		p.Args = append(p.Args, "--sysroot", sysroot)
	}
	return p, nil
}

func stripExecHash(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == plugin.ExecHashFlag:
			i++
		case strings.HasPrefix(args[i], plugin.ExecHashFlag+"="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}

// stdout receives the version banner.
var stdout io.Writer = os.Stdout

// Run is the body of the gate process and returns its exit code. argv is
// the full process argument vector.
func Run[A any](ctx context.Context, p plugin.Plugin[A], argv []string, lookup compiler.Lookup) int {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("driver: %v", err)
		return 1
	}
	cfg.Apply()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "rustcplugin-driver",
		ServiceVersion: p.Version(),
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warnf("driver: tracing disabled: %v", err)
	}
	defer tp.Shutdown(context.Background())
	ctx = observability.ExtractEnv(ctx, lookup)

	prep, err := Prepare(ctx, argv, lookup)
	if err != nil {
		logger.Errorf("driver: %v", err)
		return 1
	}
	if prep.VersionQuery {
		fmt.Fprintln(stdout, p.Version())
		return 0
	}

	c := &compiler.Compiler{Path: prep.Compiler, Args: prep.Args}
	inv := c.Invocation()

	ctx, span := observability.StartDriverSpan(ctx, inv.CrateName)
	defer span.End()

	verdict := Decide(prep.Args, ReadMarkers(lookup))
	logger.Debugf("driver: crate %q: %s", inv.CrateName, verdict)

	if verdict.Decision == RunPlugin {
		err = runPlugin(ctx, p, c, lookup)
	} else {
		err = c.Run(ctx, compiler.NoopCallbacks{})
	}

	code := ExitCode(err)
	observability.RecordExit(span, code, err)
	var exitErr *compiler.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		logger.Errorf("driver: crate %q: %v", inv.CrateName, err)
	}
	return code
}

// PanicError carries a panic recovered from the plugin.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin panicked: %v\n%s", e.Value, e.Stack)
}

func runPlugin[A any](ctx context.Context, p plugin.Plugin[A], c *compiler.Compiler, lookup compiler.Lookup) (err error) {
	raw, ok := lookup(plugin.PluginArgsEnv)
	if !ok {
		return &ProtocolError{Var: plugin.PluginArgsEnv, Err: errors.New("not set; was the driver started by the plugin's cargo subcommand?")}
	}
	args, err := plugin.DecodeArgs[A](raw)
	if err != nil {
		return &ProtocolError{Var: plugin.PluginArgsEnv, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	logger.Debugf("driver: running plugin on %s", c.Invocation().Input)
	return p.Run(ctx, c, args)
}

// ExitCode maps the outcome of a unit to the gate's exit status. The real
// compiler's status passes through unchanged.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *compiler.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return IceExitCode
	}
	return 1
}

// Main runs the gate for the current process and exits.
func Main[A any](p plugin.Plugin[A]) {
	os.Exit(Run(context.Background(), p, os.Args, os.LookupEnv))
}
