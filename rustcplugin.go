// Package rustcplugin runs a plugin over the crates of a cargo workspace.
//
// One executable plays both roles. Run by the user it is the coordinator
// (package cli), which reruns cargo with the executable installed as
// RUSTC_WRAPPER. Run by cargo with a compiler path as its first argument
// it is the driver (package driver), which decides per compilation unit
// whether the plugin or just the real compiler runs.
package rustcplugin

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rustcplugin/cli"
	"rustcplugin/compiler"
	"rustcplugin/driver"
	"rustcplugin/plugin"
)

// Run dispatches argv to the driver or the coordinator and returns the
// process exit code.
func Run[A any](ctx context.Context, p plugin.Plugin[A], argv []string, lookup compiler.Lookup) int {
	if driver.IsWrapperInvocation(argv) {
		return driver.Run(ctx, p, argv, lookup)
	}
	return cli.Run(ctx, p, argv, lookup)
}

// Main is the whole main function of a single-binary plugin, one whose
// DriverName is "".
func Main[A any](p plugin.Plugin[A]) {
	if driver.IsWrapperInvocation(os.Args) {
		driver.Main(p)
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, p, os.Args, os.LookupEnv)
	stop()
	os.Exit(code)
}
