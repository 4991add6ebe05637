// Package adapters provides provider-specific payload handling.
//
// DESIGN: Hosts forward chat requests to several providers (OpenAI, Anthropic,
// Ollama). The request message list shares one shape (messages[] with role,
// content and optional attributes); responses differ. Adapters hide the
// differences from hooks:
//
//   - Request side:  ExtractMessages / ExtractModel
//   - Response side: ExtractUsage / ExtractResponseText / ResponseMessagePaths
//
// FLOW:
//  1. Host resolves an adapter from the Registry (provider hint or model prefix)
//  2. Hooks read messages through the adapter (gjson, no full unmarshal)
//  3. Hooks patch the raw body themselves (sjson), keeping unknown fields intact
//
// To add a new provider: implement Adapter and register it in NewRegistry.
package adapters

// Adapter defines the unified interface for provider-specific payload handling.
// Adapters are stateless and thread-safe.
type Adapter interface {
	// Name returns the adapter identifier (e.g., "openai", "anthropic")
	Name() string

	// Provider returns the provider type for this adapter
	Provider() Provider

	// =========================================================================
	// REQUEST SIDE
	// =========================================================================

	// ExtractMessages returns the request message list in order.
	// Returns ErrInvalidJSON when the body is not JSON, and nil when there
	// is no messages array.
	ExtractMessages(body []byte) ([]Message, error)

	// ExtractModel extracts the model name from request body.
	ExtractModel(requestBody []byte) string

	// =========================================================================
	// RESPONSE SIDE
	// =========================================================================

	// ExtractUsage extracts token usage from API response body.
	// OpenAI: {"usage": {"prompt_tokens": N, "completion_tokens": N, "total_tokens": N}}
	// Anthropic: {"usage": {"input_tokens": N, "output_tokens": N}}
	ExtractUsage(responseBody []byte) UsageInfo

	// ExtractResponseText returns the assistant text of a response.
	ExtractResponseText(responseBody []byte) string

	// ResponseMessagePaths returns the sjson paths of every message object
	// in a response (e.g. "choices.0.message").
	ResponseMessagePaths(responseBody []byte) []string
}

// BaseAdapter provides common functionality for all adapters.
type BaseAdapter struct {
	name     string
	provider Provider
}

// Name returns the adapter name.
func (a *BaseAdapter) Name() string {
	return a.name
}

// Provider returns the provider type.
func (a *BaseAdapter) Provider() Provider {
	return a.provider
}
