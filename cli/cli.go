// Package cli is the coordinator: the process the user runs. It works out
// which crates the plugin should see, then runs cargo with this executable
// installed as the compiler wrapper.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"rustcplugin/compiler"
	"rustcplugin/config"
	"rustcplugin/observability"
	"rustcplugin/plugin"
	"rustcplugin/toolchain"
	"rustcplugin/utils/logger"
)

// stdout receives the version banner.
var stdout io.Writer = os.Stdout

// DriverPath returns the executable cargo should use as its compiler
// wrapper: a sibling binary named driverName, or self when it is empty.
func DriverPath(self, driverName string) string {
	if driverName == "" {
		return self
	}
	path := filepath.Join(filepath.Dir(self), driverName)
	if runtime.GOOS == "windows" && filepath.Ext(path) != ".exe" {
		path += ".exe"
	}
	return path
}

// PluginTargetDir is the private target directory for plugin builds, kept
// apart from the user's own so that the two never invalidate each other.
func PluginTargetDir(meta *Metadata, channel string) string {
	return filepath.Join(meta.TargetDirectory, "plugin-"+channel)
}

// Invoke runs cargo with inherited streams and returns its exit code. A
// cargo killed by a signal yields -1.
func Invoke(ctx context.Context, cmd *exec.Cmd) (int, error) {
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		logger.Warnf("cli: interrupted: %v", ctx.Err())
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("running cargo: %w", err)
}

// Run is the body of the coordinator process and returns its exit code.
func Run[A any](ctx context.Context, p plugin.Plugin[A], argv []string, lookup compiler.Lookup) int {
	for i, arg := range argv {
		if i == 0 {
			continue
		}
		// Arguments after "--" belong to cargo.
		if arg == "--" {
			break
		}
		if arg == "-V" || arg == "--version" {
			fmt.Fprintln(stdout, p.Version())
			return 0
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("cli: %v", err)
		return 1
	}
	cfg.Apply()
	for _, w := range cfg.Validate() {
		logger.Warnf("config: %s", w)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "rustcplugin",
		ServiceVersion: p.Version(),
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warnf("cli: tracing disabled: %v", err)
	}
	defer tp.Shutdown(context.Background())

	code, err := coordinate(ctx, p, cfg, lookup)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return code
}

func coordinate[A any](ctx context.Context, p plugin.Plugin[A], cfg *config.Config, lookup compiler.Lookup) (int, error) {
	dir, err := os.Getwd()
	if err != nil {
		return 1, err
	}
	meta, err := ResolveWorkspace(ctx, cfg.Cargo, dir)
	if err != nil {
		return 1, err
	}
	members, err := meta.Members()
	if err != nil {
		return 1, err
	}

	channel := toolchain.ResolveChannel(meta.WorkspaceRoot, toolchain.Lookup(lookup))
	targetDir := PluginTargetDir(meta, channel)

	pargs, err := p.Args(targetDir)
	if errors.Is(err, plugin.ErrHelp) {
		return 0, nil
	}
	if err != nil {
		return 1, fmt.Errorf("parsing plugin arguments: %w", err)
	}

	ctx, span := observability.StartCoordinatorSpan(ctx, pargs.Filter.String())
	defer span.End()

	sel, err := SelectTargets(pargs.Filter, members)
	if err != nil {
		observability.RecordExit(span, 1, err)
		return 1, err
	}

	self, err := os.Executable()
	if err != nil {
		return 1, fmt.Errorf("locating current executable: %w", err)
	}
	wrapper := DriverPath(self, p.DriverName())
	hash, err := ExecHash(wrapper, self)
	if err != nil {
		return 1, err
	}

	encoded, err := plugin.EncodeArgs(pargs.Args)
	if err != nil {
		return 1, err
	}

	patch, err := BuildEnvironment(EnvInput{
		PluginArgs: encoded,
		Wrapper:    wrapper,
		ExecHash:   hash,
		Selection:  sel,
		Members:    members,
		TargetDir:  targetDir,
		Lookup:     lookup,
	})
	if err != nil {
		return 1, err
	}
	for k, v := range observability.InjectEnv(ctx) {
		patch[k] = v
	}

	cmd := exec.CommandContext(ctx, cfg.Cargo, "check", "-vv", "--target-dir", targetDir)
	cmd.Args = append(cmd.Args, sel.CargoArgs...)
	cmd.Dir = dir
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	p.ModifyCargo(cmd, pargs.Args)
	patch.Apply(cmd)

	if logger.IsVerbose() {
		if dump, err := patch.Dotenv(); err == nil {
			logger.Debugf("cli: cargo environment:\n%s", dump)
		}
	}
	logger.Debugf("cli: running %v", cmd.Args)

	code, err := Invoke(ctx, cmd)
	observability.RecordExit(span, code, err)
	return code, err
}

// Main runs the coordinator for the current process and exits. An
// interrupt is forwarded to cargo, which stops its compiler children.
func Main[A any](p plugin.Plugin[A]) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, p, os.Args, os.LookupEnv)
	stop()
	os.Exit(code)
}
