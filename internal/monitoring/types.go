// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by config/, hooks/ and monitoring/.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - CallSite:     Which extension point a hook ran at
//   - FaultKind:    How a hook failed
//   - LoggerConfig: Operator logging settings
package monitoring

// =============================================================================
// CALL SITES - Used by the hook registry, metrics and the interaction log
// =============================================================================

// CallSite identifies the host extension point a hook runs at.
type CallSite string

const (
	CallSitePreCall  CallSite = "pre_call"
	CallSitePostCall CallSite = "post_call"
)

// FaultKind classifies a hook failure swallowed by the registry.
type FaultKind string

const (
	FaultError FaultKind = "error"
	FaultPanic FaultKind = "panic"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}
