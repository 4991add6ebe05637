// Monitoring configuration - operator logging settings.
//
// DESIGN: Separates operator logging (zerolog, this section) from the
// interaction log (hooks.interaction_log), which records message content
// for verification and usually goes to a different sink.
package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/compresr/context-hooks/internal/monitoring"
)

// MonitoringConfig contains operator logging settings.
type MonitoringConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path
}

// LoggerConfig converts the monitoring section into a monitoring.LoggerConfig.
func (m *MonitoringConfig) LoggerConfig() monitoring.LoggerConfig {
	return monitoring.LoggerConfig{
		Level:  m.LogLevel,
		Format: m.LogFormat,
		Output: m.LogOutput,
	}
}

// Validate validates logging settings. Empty values fall back to defaults.
func (m *MonitoringConfig) Validate() error {
	if m.LogLevel != "" {
		if _, err := zerolog.ParseLevel(m.LogLevel); err != nil {
			return fmt.Errorf("monitoring.log_level: %w", err)
		}
	}
	switch m.LogFormat {
	case "", monitoring.FormatJSON, monitoring.FormatConsole:
	default:
		return fmt.Errorf("monitoring.log_format: unknown format %q, must be 'json' or 'console'", m.LogFormat)
	}
	return nil
}
