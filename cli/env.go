package cli

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"

	"rustcplugin/compiler"
	"rustcplugin/plugin"
)

// encodedFlagSeparator separates entries of CARGO_ENCODED_RUSTFLAGS.
const encodedFlagSeparator = "\x1f"

// PriorRustflags returns the compiler flags the user already configured, so
// that adding the exec-hash flag does not discard them.
func PriorRustflags(lookup compiler.Lookup) []string {
	if encoded, ok := lookup(plugin.EncodedRustflagsEnv); ok {
		if encoded == "" {
			return nil
		}
		return strings.Split(encoded, encodedFlagSeparator)
	}
	if flags, ok := lookup(plugin.RustflagsEnv); ok {
		return strings.Fields(flags)
	}
	return nil
}

// ExecHash fingerprints the plugin binaries by their modification times.
// Cargo includes compiler flags in its freshness check, so passing the hash
// as a flag makes a rebuilt plugin rerun on crates cargo considers fresh.
func ExecHash(paths ...string) (string, error) {
	h := xxhash.New()
	var buf [8]byte
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("hashing plugin binary: %w", err)
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(info.ModTime().UnixNano()))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// EnvInput is everything BuildEnvironment needs to know.
type EnvInput struct {
	// PluginArgs is the encoded plugin argument value.
	PluginArgs string
	// Wrapper is the driver executable cargo runs instead of rustc.
	Wrapper   string
	ExecHash  string
	Selection *Selection
	Members   []Package
	TargetDir string
	Lookup    compiler.Lookup
}

// EnvPatch holds the variables added to cargo's environment.
type EnvPatch map[string]string

// Apply adds the patch to cmd's environment, inheriting the current
// environment if cmd has none yet.
func (p EnvPatch) Apply(cmd *exec.Cmd) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	for _, k := range p.keys() {
		cmd.Env = append(cmd.Env, k+"="+p[k])
	}
}

func (p EnvPatch) keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dotenv renders the patch in .env syntax, for debug logs and for
// reproducing a single compiler invocation by hand.
func (p EnvPatch) Dotenv() (string, error) {
	return godotenv.Marshal(p)
}

// BuildEnvironment computes the environment for the cargo child. For a
// single library target it also removes that library's stale artifacts.
func BuildEnvironment(in EnvInput) (EnvPatch, error) {
	lookup := in.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	patch := EnvPatch{
		plugin.PluginArgsEnv: in.PluginArgs,
		plugin.WrapperEnv:    in.Wrapper,
	}

	flags := PriorRustflags(lookup)
	if in.ExecHash != "" {
		flags = append(flags, plugin.ExecHashFlag, in.ExecHash)
	}
	if len(flags) > 0 {
		patch[plugin.EncodedRustflagsEnv] = strings.Join(flags, encodedFlagSeparator)
	}

	if in.Selection != nil {
		for k, v := range in.Selection.Markers {
			patch[k] = v
		}
		if in.Selection.Kind() == "lib" {
			if err := InvalidateLibArtifacts(in.TargetDir, in.Selection.CrateName()); err != nil {
				return nil, err
			}
		}
	}

	// The rustc workspace itself only builds with CFG_RELEASE present.
	for _, pkg := range in.Members {
		if pkg.Name == "rustc-main" {
			patch["CFG_RELEASE"] = ""
			break
		}
	}

	return patch, nil
}
