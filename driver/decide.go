package driver

import (
	"fmt"
	"strings"

	"rustcplugin/compiler"
	"rustcplugin/plugin"
)

// Decision is the terminal action of one gate invocation.
type Decision int

const (
	DelegateToRealCompiler Decision = iota
	RunPlugin
)

func (d Decision) String() string {
	switch d {
	case DelegateToRealCompiler:
		return "DelegateToRealCompiler"
	case RunPlugin:
		return "RunPlugin"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Markers are the environment variables the coordinator and cargo set for
// the gate.
type Markers struct {
	RunOnAllCrates bool
	PrimaryPackage bool
	// Specific is set when both SpecificCrate and SpecificTarget were.
	Specific       bool
	SpecificCrate  string
	SpecificTarget string
}

// ReadMarkers reads the markers through lookup. Presence is what counts for
// the boolean markers, not the value.
func ReadMarkers(lookup compiler.Lookup) Markers {
	var m Markers
	_, m.RunOnAllCrates = lookup(plugin.RunOnAllCratesEnv)
	_, m.PrimaryPackage = lookup(plugin.PrimaryPackageEnv)

	crate, okCrate := lookup(plugin.SpecificCrateEnv)
	target, okTarget := lookup(plugin.SpecificTargetEnv)
	if okCrate && okTarget {
		m.Specific = true
		m.SpecificCrate, m.SpecificTarget = crate, target
	}
	return m
}

// Verdict is a Decision together with the facts it was made from.
type Verdict struct {
	Decision       Decision
	NormalRustc    bool
	RunOnAllCrates bool
	PrimaryPackage bool
	IsTargetCrate  bool
}

func (v Verdict) String() string {
	return fmt.Sprintf("%s (normal_rustc=%t, run_on_all_crates=%t, primary_package=%t, is_target_crate=%t)",
		v.Decision, v.NormalRustc, v.RunOnAllCrates, v.PrimaryPackage, v.IsTargetCrate)
}

// Decide picks the action for a compiler invocation with the given
// arguments (wrapper path already stripped). Capability queries always go to
// the real compiler. Otherwise the plugin runs when the crate matches any
// specific crate/target markers and the unit is either selected by the
// run-on-all-crates marker or belongs to the primary package.
func Decide(args []string, m Markers) Verdict {
	v := Verdict{
		RunOnAllCrates: m.RunOnAllCrates,
		PrimaryPackage: m.PrimaryPackage,
	}

	v.NormalRustc = isSelfQuery(args)

	v.IsTargetCrate = true
	if m.Specific {
		_, nameOK := compiler.ArgValue(args, "--crate-name", func(name string) bool { return name == m.SpecificCrate })
		_, typeOK := compiler.ArgValue(args, "--crate-type", func(kind string) bool { return kind == m.SpecificTarget })
		v.IsTargetCrate = nameOK && typeOK
	}

	if !v.NormalRustc && v.IsTargetCrate && (v.RunOnAllCrates || v.PrimaryPackage) {
		v.Decision = RunPlugin
	}
	return v
}

// isSelfQuery reports whether args ask the compiler about itself rather than
// to compile a crate: --print queries and cargo's `rustc -vV` version check.
func isSelfQuery(args []string) bool {
	verbose, version := false, false
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--print"):
			return true
		case arg == "-vV" || arg == "-Vv":
			return true
		case arg == "-v" || arg == "--verbose":
			verbose = true
		case arg == "-V" || arg == "--version":
			version = true
		}
	}
	return verbose && version
}
