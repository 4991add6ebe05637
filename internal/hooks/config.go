// Hooks configuration - per-hook settings.
//
// DESIGN: Three independent hooks, each enabled separately:
//   - RemoveName:     Strip the optional name attribute from messages
//   - CombineSystem:  Merge all system messages into the first one
//   - InteractionLog: Record pre-call and post-call content
//
// Execution order is NOT configured here: it is fixed by hook priority
// (see Priority* constants in hook.go).
//
// NOTE: The main Config struct in config/ imports and uses these types.
package hooks

import (
	"fmt"
	"strings"
)

// Hook names, as used in config, logs and metrics.
const (
	NameRemoveName     = "remove_name"
	NameCombineSystem  = "combine_system"
	NameInteractionLog = "interaction_log"
)

// Defaults applied when a field is left empty.
const (
	DefaultNameField = "name"
	DefaultSeparator = "\n"
	DefaultEncoding  = "cl100k_base"
	DefaultLogOutput = "stderr"
	DefaultLogFormat = "json"
)

// pathMetaChars are characters with meaning in gjson/sjson paths.
const pathMetaChars = ".*?|#@\\"

// =============================================================================
// HOOKS CONFIG - Root configuration for all hooks
// =============================================================================

// Config contains configuration for all hooks.
type Config struct {
	RemoveName     RemoveNameConfig     `yaml:"remove_name"`     // Name-field stripper
	CombineSystem  CombineSystemConfig  `yaml:"combine_system"`  // System-message combiner
	InteractionLog InteractionLogConfig `yaml:"interaction_log"` // Interaction logger
}

// Validate validates hook configurations.
func (c *Config) Validate() error {
	if err := c.RemoveName.Validate(); err != nil {
		return err
	}
	if err := c.InteractionLog.Validate(); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// REMOVE NAME
// =============================================================================

// RemoveNameConfig configures the name-field stripper.
type RemoveNameConfig struct {
	Enabled  bool     `yaml:"enabled"`   // Enable this hook
	Field    string   `yaml:"field"`     // Attribute to strip (default: name)
	Roles    []string `yaml:"roles"`     // Only strip from these roles (empty = all)
	PostCall bool     `yaml:"post_call"` // Also strip from response messages
}

// FieldOrDefault returns the configured field or "name".
func (c *RemoveNameConfig) FieldOrDefault() string {
	if c.Field == "" {
		return DefaultNameField
	}
	return c.Field
}

// Validate validates the stripper config.
func (c *RemoveNameConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.ContainsAny(c.Field, pathMetaChars) {
		return fmt.Errorf("remove_name: field %q must not contain any of %q", c.Field, pathMetaChars)
	}
	for _, role := range c.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("remove_name: roles must not contain empty entries")
		}
	}
	return nil
}

// =============================================================================
// COMBINE SYSTEM
// =============================================================================

// CombineSystemConfig configures the system-message combiner.
type CombineSystemConfig struct {
	Enabled   bool   `yaml:"enabled"`   // Enable this hook
	Separator string `yaml:"separator"` // Joins system contents (default: "\n")
}

// SeparatorOrDefault returns the configured separator or a newline.
func (c *CombineSystemConfig) SeparatorOrDefault() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

// =============================================================================
// INTERACTION LOG
// =============================================================================

// InteractionLogConfig configures the interaction logger.
type InteractionLogConfig struct {
	Enabled         bool   `yaml:"enabled"`           // Enable this hook
	Output          string `yaml:"output"`            // stdout | stderr | file path (default: stderr)
	Format          string `yaml:"format"`            // json | console (default: json)
	PrettyMessages  bool   `yaml:"pretty_messages"`   // Indent the message dump (console format)
	MaxContentBytes int    `yaml:"max_content_bytes"` // Truncate logged content (0 = unlimited)
	CountTokens     bool   `yaml:"count_tokens"`      // Add a token estimate to pre-call records
	Encoding        string `yaml:"encoding"`          // tiktoken encoding (default: cl100k_base)
}

// OutputOrDefault returns the configured output or stderr.
func (c *InteractionLogConfig) OutputOrDefault() string {
	if c.Output == "" {
		return DefaultLogOutput
	}
	return c.Output
}

// FormatOrDefault returns the configured format or json.
func (c *InteractionLogConfig) FormatOrDefault() string {
	if c.Format == "" {
		return DefaultLogFormat
	}
	return c.Format
}

// EncodingOrDefault returns the configured tiktoken encoding or cl100k_base.
func (c *InteractionLogConfig) EncodingOrDefault() string {
	if c.Encoding == "" {
		return DefaultEncoding
	}
	return c.Encoding
}

// Validate validates the interaction logger config.
func (c *InteractionLogConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.FormatOrDefault() {
	case "json", "console":
	default:
		return fmt.Errorf("interaction_log: unknown format %q, must be 'json' or 'console'", c.Format)
	}
	if c.MaxContentBytes < 0 {
		return fmt.Errorf("interaction_log: max_content_bytes must be >= 0, got %d", c.MaxContentBytes)
	}
	return nil
}
