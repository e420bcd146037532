// Package config provides unified configuration loading for hierfit.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hierbayes/hierfit/internal/priors"
)

// Config contains all hierfit configuration settings.
type Config struct {
	// Sampler contains settings for the external sampler process.
	Sampler SamplerConfig `json:"sampler" yaml:"sampler"`

	// Store contains settings for the local draws archive.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and run logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Priors overrides the built-in hyperparameter bounds by name.
	// Unknown names are rejected at validation time.
	Priors map[string]priors.Bound `json:"priors,omitempty" yaml:"priors,omitempty"`
}

// SamplerConfig configures how the external sampler is invoked.
type SamplerConfig struct {
	// Command is the sampler executable. Supports ${VAR} syntax for env vars.
	Command string `json:"command" yaml:"command"`

	// Chains is the number of chains per run.
	Chains int `json:"chains" yaml:"chains"`

	// Iter is the total iterations per chain.
	Iter int `json:"iter" yaml:"iter"`

	// Warmup is the warmup iterations per chain. Zero means half of Iter.
	Warmup int `json:"warmup,omitempty" yaml:"warmup,omitempty"`

	// AdaptDelta is the acceptance-rate target, in (0, 1).
	AdaptDelta float64 `json:"adapt_delta" yaml:"adapt_delta"`

	// MaxTreedepth bounds the sampler's trajectory depth.
	MaxTreedepth int `json:"max_treedepth" yaml:"max_treedepth"`
}

// StoreConfig configures the local draws archive.
type StoreConfig struct {
	// Path is the archive database file. Defaults to ~/.hierfit/hierfit.db.
	Path string `json:"path" yaml:"path"`
}

// LoggingConfig configures hierfit's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables run logging to .hierfit/runs.jsonl.
	// "trace" additionally includes flattened data summaries.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Command:      "",
			Chains:       4,
			Iter:         2000,
			AdaptDelta:   0.9,
			MaxTreedepth: 12,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultStorePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".hierfit", "hierfit.db")
	}
	return filepath.Join(homeDir, ".hierfit", "hierfit.db")
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.hierfit/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".hierfit", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in the sampler command
	config.Sampler.Command = expandEnvVars(config.Sampler.Command)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Sampler.Chains < 1 {
		return fmt.Errorf("sampler chains must be at least 1, got %d", c.Sampler.Chains)
	}
	if c.Sampler.Iter < 1 {
		return fmt.Errorf("sampler iter must be at least 1, got %d", c.Sampler.Iter)
	}
	if c.Sampler.Warmup < 0 || c.Sampler.Warmup >= c.Sampler.Iter {
		return fmt.Errorf("sampler warmup must be in [0, iter), got %d", c.Sampler.Warmup)
	}
	if c.Sampler.AdaptDelta <= 0 || c.Sampler.AdaptDelta >= 1 {
		return fmt.Errorf("sampler adapt_delta must be in (0, 1), got %g", c.Sampler.AdaptDelta)
	}
	if c.Sampler.MaxTreedepth < 1 {
		return fmt.Errorf("sampler max_treedepth must be at least 1, got %d", c.Sampler.MaxTreedepth)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	// Prior overrides must name known hyperparameters with ordered bounds.
	if _, err := priors.Defaults().Merge(c.Priors); err != nil {
		return fmt.Errorf("invalid prior override: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("HIERFIT_SAMPLER_COMMAND"); v != "" {
		config.Sampler.Command = v
	}

	if v := os.Getenv("HIERFIT_CHAINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sampler.Chains = n
		}
	}

	if v := os.Getenv("HIERFIT_ITER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sampler.Iter = n
		}
	}

	if v := os.Getenv("HIERFIT_WARMUP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sampler.Warmup = n
		}
	}

	if v := os.Getenv("HIERFIT_ADAPT_DELTA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Sampler.AdaptDelta = f
		}
	}

	if v := os.Getenv("HIERFIT_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("HIERFIT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
