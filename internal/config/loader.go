package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a custom config path.
const EnvConfigPath = "WORLDGATE_CONFIG"

// DefaultPath is the config file used when no custom one loads.
const DefaultPath = "./config/worldgate.yaml"

// ErrConfigMissing is returned when neither the custom nor the default
// config file can be loaded.
var ErrConfigMissing = errors.New("no configuration file could be loaded")

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFirst loads the custom config when it reads and parses, falling back
// to the default path otherwise. An empty custom path skips straight to the
// default. Validation errors are not a reason to fall back.
//
// Returns the config, the path it came from, or ErrConfigMissing wrapping
// the last read error.
func LoadFirst(custom, fallback string) (*Config, string, error) {
	var lastErr error
	for _, path := range []string{custom, fallback} {
		if path == "" {
			continue
		}
		cfg, err := LoadWithDefaults(path)
		if err != nil {
			lastErr = err
			continue
		}
		if err := cfg.Validate(); err != nil {
			return nil, path, fmt.Errorf("validate config %s: %w", path, err)
		}
		return cfg, path, nil
	}
	if lastErr == nil {
		return nil, "", ErrConfigMissing
	}
	return nil, "", fmt.Errorf("%w: %v", ErrConfigMissing, lastErr)
}

// ResolvePath picks the custom config path: an explicit argument first,
// then $WORLDGATE_CONFIG.
func ResolvePath(arg string) string {
	if arg != "" {
		return arg
	}
	return os.Getenv(EnvConfigPath)
}
