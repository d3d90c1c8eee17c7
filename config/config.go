package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"rustcplugin/utils/logger"
)

// FileEnv names an optional configuration file (yaml, toml or json).
const FileEnv = "RUSTC_PLUGIN_CONFIG"

// Config holds the framework's own settings. The coordinator/driver protocol
// variables are fixed names and deliberately not configurable.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Cargo   string        `mapstructure:"cargo"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, err.Error())
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		warnings = append(warnings, fmt.Sprintf("log format %q is neither text nor json", c.Log.Format))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0, 1]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from the environment (RUSTC_PLUGIN_LOG_LEVEL,
// RUSTC_PLUGIN_CARGO, ...) and, when RUSTC_PLUGIN_CONFIG is set, from that
// file. RUST_LOG is honoured as a fallback log level.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUSTC_PLUGIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cargo", "cargo")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)

	if rustLog := os.Getenv("RUST_LOG"); rustLog != "" {
		if _, err := logger.ParseLevel(rustLog); err == nil {
			v.SetDefault("log.level", rustLog)
		}
	}

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Apply configures the logger from cfg.
func (c *Config) Apply() {
	logger.Configure(os.Stderr, c.Log.Format)
	if level, err := logger.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
}
