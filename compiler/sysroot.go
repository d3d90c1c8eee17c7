package compiler

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"rustcplugin/toolchain"
)

var ErrNoSysroot = errors.New("could not determine the sysroot: pass --sysroot, set SYSROOT, use rustup, or bake one in with -ldflags")

// Lookup reads one environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// SysrootResolver finds the compiler's sysroot, looking from the source most
// specific to this invocation to the least:
//   - the --sysroot argument
//   - runtime environment: MIRI_SYSROOT, SYSROOT, then the rustup/multirust
//     home and toolchain variables
//   - asking rustc on the PATH
//   - values baked in at link time (package toolchain)
type SysrootResolver struct {
	Lookup Lookup
	// Ask queries a compiler for its sysroot. Defaults to running
	// "rustc --print sysroot".
	Ask func(ctx context.Context) (string, error)
}

// Resolve returns the sysroot and whether it came from args.
func (r *SysrootResolver) Resolve(ctx context.Context, args []string) (string, bool, error) {
	if sysroot, ok := ArgValue(args, "--sysroot", nil); ok {
		return sysroot, true, nil
	}

	for _, key := range []string{"MIRI_SYSROOT", "SYSROOT"} {
		if v, ok := r.env(key); ok && v != "" {
			return v, false, nil
		}
	}

	home := r.first("RUSTUP_HOME", "MULTIRUST_HOME")
	tc := r.first("RUSTUP_TOOLCHAIN", "MULTIRUST_TOOLCHAIN")
	if p := toolchain.Path(home, tc); p != "" {
		return p, false, nil
	}

	ask := r.Ask
	if ask == nil {
		ask = askRustc
	}
	if sysroot, err := ask(ctx); err == nil && sysroot != "" {
		return sysroot, false, nil
	}

	if baked := toolchain.BakedSysroot(); baked != "" {
		return baked, false, nil
	}

	return "", false, ErrNoSysroot
}

func (r *SysrootResolver) env(key string) (string, bool) {
	if r.Lookup == nil {
		return "", false
	}
	return r.Lookup(key)
}

func (r *SysrootResolver) first(keys ...string) string {
	for _, key := range keys {
		if v, ok := r.env(key); ok {
			return v
		}
	}
	return ""
}

func askRustc(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "rustc", "--print", "sysroot").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
