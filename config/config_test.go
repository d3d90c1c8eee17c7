package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{FileEnv, "RUST_LOG", "RUSTC_PLUGIN_LOG_LEVEL", "RUSTC_PLUGIN_LOG_FORMAT", "RUSTC_PLUGIN_CARGO", "RUSTC_PLUGIN_TRACING_ENDPOINT", "RUSTC_PLUGIN_TRACING_SAMPLE_RATE"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" || cfg.Cargo != "cargo" {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.Tracing.SampleRate != 1.0 || cfg.Tracing.Endpoint != "" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Errorf("Validate() = %v, want none", warnings)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUST_LOG", "debug")
	t.Setenv("RUSTC_PLUGIN_CARGO", "/opt/cargo")
	t.Setenv("RUSTC_PLUGIN_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cargo != "/opt/cargo" || cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Errorf("Load() = %+v", cfg)
	}

	t.Setenv("RUSTC_PLUGIN_LOG_LEVEL", "warn")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want the explicit level over RUST_LOG", cfg.Log.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.toml")
	contents := "cargo = \"cargo-nightly\"\n[tracing]\nendpoint = \"localhost:4317\"\nsample_rate = 2.5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cargo != "cargo-nightly" || cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("Load() = %+v", cfg)
	}
	if warnings := cfg.Validate(); len(warnings) != 1 {
		t.Errorf("Validate() = %v, want one sample_rate warning", warnings)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Errorf("Load() succeeded with a missing config file")
	}
}
