// Registry manages adapter registration and lookup.
//
// DESIGN: Thread-safe map of provider name → Adapter.
// Built-in adapters (OpenAI, Anthropic, Ollama) are registered at startup.
package adapters

import (
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Registry manages adapter registration.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
	}

	// Register built-in adapters
	r.Register(NewOpenAIAdapter())
	r.Register(NewAnthropicAdapter())
	r.Register(NewOllamaAdapter())

	return r
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// Resolve picks the adapter for a request.
// Priority: explicit provider hint → model routing prefix ("anthropic/...",
// "ollama/...", "claude-...") → OpenAI.
func (r *Registry) Resolve(hint string, body []byte) Adapter {
	if hint != "" {
		if adapter := r.Get(strings.ToLower(hint)); adapter != nil {
			return adapter
		}
	}

	if provider := IdentifyProvider(gjson.GetBytes(body, "model").String()); provider != ProviderUnknown {
		if adapter := r.Get(provider.String()); adapter != nil {
			return adapter
		}
	}

	return r.Get(ProviderOpenAI.String())
}

// IdentifyProvider infers the provider from a model name.
func IdentifyProvider(model string) Provider {
	model = strings.ToLower(model)
	switch {
	case model == "":
		return ProviderUnknown
	case strings.HasPrefix(model, "anthropic/"), strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "ollama/"), strings.HasPrefix(model, "ollama_chat/"):
		return ProviderOllama
	case strings.HasPrefix(model, "openai/"), strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI
	default:
		return ProviderUnknown
	}
}
