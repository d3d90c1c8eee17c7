// Package plugin defines the contract between a plugin and the framework:
// the Plugin interface, the crate filter, and the environment variables the
// coordinator and the driver use to talk across the cargo process boundary.
package plugin

import (
	"context"
	"errors"
	"os/exec"

	"rustcplugin/compiler"
)

// Environment variables shared by the coordinator and the driver. None of
// them may collide with a variable cargo itself reads.
const (
	// PluginArgsEnv carries the JSON-encoded plugin arguments.
	PluginArgsEnv = "PLUGIN_ARGS"
	// RunOnAllCratesEnv is set (to any value) for the AllCrates filter.
	RunOnAllCratesEnv = "RUSTC_PLUGIN_ALL_TARGETS"
	// SpecificCrateEnv and SpecificTargetEnv narrow the run to one crate
	// name and crate type, for the CrateContainingFile filter.
	SpecificCrateEnv  = "SPECIFIC_CRATE"
	SpecificTargetEnv = "SPECIFIC_TARGET"
)

// Variables owned by cargo.
const (
	WrapperEnv          = "RUSTC_WRAPPER"
	PrimaryPackageEnv   = "CARGO_PRIMARY_PACKAGE"
	EncodedRustflagsEnv = "CARGO_ENCODED_RUSTFLAGS"
	RustflagsEnv        = "RUSTFLAGS"
)

// ExecHashFlag is appended to the compiler flags, followed by a hash of the
// plugin binaries, so that cargo's fingerprint changes whenever the plugin
// is rebuilt. The driver strips it before the real compiler sees it.
const ExecHashFlag = "--plugin-exec-hash"

// ErrHelp is returned from Plugin.Args when the plugin printed its usage
// and the coordinator should exit successfully without running cargo.
var ErrHelp = errors.New("help requested")

// Args is what a plugin hands back after parsing its command line.
type Args[A any] struct {
	// Args is forwarded verbatim to every driver invocation.
	Args A
	// Filter selects the crates the plugin runs on.
	Filter CrateFilter
}

// Plugin is implemented by tools built on the framework. A is the plugin's
// own argument type and must survive a JSON round trip.
type Plugin[A any] interface {
	// Version is printed for -V and --version.
	Version() string

	// DriverName is the file name of a separate driver binary installed
	// next to the CLI binary. Return "" to use the CLI binary itself as the
	// driver.
	DriverName() string

	// Args parses the plugin's command line. targetDir is the private cargo
	// target directory the plugin's build runs in.
	Args(targetDir string) (Args[A], error)

	// ModifyCargo adjusts the cargo command before it runs, e.g. to pass
	// through --features or --release.
	ModifyCargo(cmd *exec.Cmd, args A)

	// Run executes the plugin on one compilation unit. It should normally
	// let c compile the unit so that dependent crates find its metadata.
	Run(ctx context.Context, c *compiler.Compiler, args A) error
}
