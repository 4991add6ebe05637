// Package config loads and validates the hooks configuration.
//
// DESIGN: Configuration comes from a YAML file. Hook options have safe
// defaults (see hooks/config.go); which hooks run is always explicit.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - hooks.go:      Hook config re-exports
//   - monitoring.go: Logging settings
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the hook chain.
type Config struct {
	Hooks      HooksConfig      `yaml:"hooks"`      // Which hooks run and their options
	Monitoring MonitoringConfig `yaml:"monitoring"` // Operator logging
}

// envPattern matches ${VAR:-default} or ${VAR}.
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployments redirect log output without editing
// the config file.
func (c *Config) applyEnvOverrides() {
	// HOOKS_INTERACTION_LOG overrides the interaction log sink
	if output := os.Getenv("HOOKS_INTERACTION_LOG"); output != "" {
		c.Hooks.InteractionLog.Output = output
	}

	// HOOKS_LOG_OUTPUT overrides the operator log output
	if output := os.Getenv("HOOKS_LOG_OUTPUT"); output != "" {
		c.Monitoring.LogOutput = output
	}

	// HOOKS_LOG_LEVEL overrides the operator log level
	if level := os.Getenv("HOOKS_LOG_LEVEL"); level != "" {
		c.Monitoring.LogLevel = level
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Hooks.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}
	return nil
}
