// Package toolchain locates the Rust toolchain a plugin was built against.
//
// The exported variables are empty by default and meant to be baked in at
// link time, e.g.
//
//	go build -ldflags "-X rustcplugin/toolchain.Channel=nightly-2024-05-20"
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
)

var (
	Sysroot    string
	RustupHome string
	Toolchain  string
	Channel    string
)

const (
	toolchainFile       = "rust-toolchain.toml"
	legacyToolchainFile = "rust-toolchain"
	defaultChannel      = "default"
)

// Lookup reads one environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

type tomlToolchainFile struct {
	Toolchain *tomlToolchain `toml:"toolchain"`
}

type tomlToolchain struct {
	Channel    string   `toml:"channel"`
	Components []string `toml:"components,omitempty"`
}

// Path returns <home>/toolchains/<toolchain>, or "" when either half is
// missing.
func Path(home, toolchain string) string {
	if home == "" || toolchain == "" {
		return ""
	}
	return filepath.Join(home, "toolchains", toolchain)
}

// LoadChannel reads the toolchain channel pinned in dir, from
// rust-toolchain.toml or the legacy one-line rust-toolchain file. It returns
// os.ErrNotExist when neither file is present.
func LoadChannel(dir string) (string, error) {
	buff, err := os.ReadFile(filepath.Join(dir, toolchainFile))
	if errors.Is(err, os.ErrNotExist) {
		buff, err = os.ReadFile(filepath.Join(dir, legacyToolchainFile))
		if err != nil {
			return "", err
		}
		// the legacy file is either a bare channel name or TOML
		trimmed := strings.TrimSpace(string(buff))
		if !strings.Contains(trimmed, "[") {
			return trimmed, nil
		}
	} else if err != nil {
		return "", err
	}

	tf := &tomlToolchainFile{}
	if err := toml.Unmarshal(buff, tf); err != nil {
		return "", fmt.Errorf("parsing toolchain file in %s: %w", dir, err)
	}
	if tf.Toolchain == nil || tf.Toolchain.Channel == "" {
		return "", fmt.Errorf("toolchain file in %s has no [toolchain] channel", dir)
	}
	return tf.Toolchain.Channel, nil
}

// ResolveChannel picks the channel name used to namespace the plugin's build
// directory: the baked Channel, then the workspace's toolchain file, then
// RUSTUP_TOOLCHAIN, then "default".
func ResolveChannel(dir string, lookup Lookup) string {
	if Channel != "" {
		return Channel
	}
	if channel, err := LoadChannel(dir); err == nil && channel != "" {
		return channel
	}
	if lookup != nil {
		if tc, ok := lookup("RUSTUP_TOOLCHAIN"); ok && tc != "" {
			return tc
		}
	}
	return defaultChannel
}

// BakedSysroot returns the sysroot recorded at link time, either directly or
// derived from the baked rustup home and toolchain.
func BakedSysroot() string {
	if Sysroot != "" {
		return Sysroot
	}
	return Path(RustupHome, Toolchain)
}
