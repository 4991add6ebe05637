// Hooks configuration re-exports.
//
// DESIGN: Hook configuration is defined in internal/hooks/config.go.
// This file re-exports those types for use by the main Config struct.
// This keeps hook configuration close to hook implementation while allowing
// the config package to use the types without circular imports.
package config

import "github.com/compresr/context-hooks/internal/hooks"

// HooksConfig is the root hook configuration.
type HooksConfig = hooks.Config

// Per-hook configuration types.
type (
	RemoveNameConfig     = hooks.RemoveNameConfig
	CombineSystemConfig  = hooks.CombineSystemConfig
	InteractionLogConfig = hooks.InteractionLogConfig
)
