package adapters

import (
	"github.com/tidwall/gjson"
)

// OllamaAdapter handles Ollama /api/chat payloads.
// Ollama uses the OpenAI Chat Completions shape for requests (messages[]),
// so this adapter embeds OpenAIAdapter and delegates request-side methods.
// Responses differ: a single top-level "message" and
// prompt_eval_count/eval_count instead of prompt_tokens/completion_tokens.
type OllamaAdapter struct {
	BaseAdapter
	*OpenAIAdapter
}

// NewOllamaAdapter creates a new Ollama adapter.
func NewOllamaAdapter() *OllamaAdapter {
	return &OllamaAdapter{
		BaseAdapter: BaseAdapter{
			name:     "ollama",
			provider: ProviderOllama,
		},
		OpenAIAdapter: NewOpenAIAdapter(),
	}
}

// Name returns the adapter name (overrides embedded OpenAIAdapter.Name).
func (a *OllamaAdapter) Name() string {
	return a.BaseAdapter.Name()
}

// Provider returns the provider type (overrides embedded OpenAIAdapter.Provider).
func (a *OllamaAdapter) Provider() Provider {
	return a.BaseAdapter.Provider()
}

// ExtractModel strips an "ollama/" routing prefix.
func (a *OllamaAdapter) ExtractModel(requestBody []byte) string {
	return extractModel(requestBody, "ollama/")
}

// ExtractUsage extracts token usage from Ollama API response.
// Ollama format: {"prompt_eval_count": N, "eval_count": N}
// Also supports OpenAI format as fallback (the /v1 compatibility endpoint returns it).
func (a *OllamaAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return UsageInfo{}
	}

	prompt := int(gjson.GetBytes(responseBody, "prompt_eval_count").Int())
	eval := int(gjson.GetBytes(responseBody, "eval_count").Int())
	if prompt > 0 || eval > 0 {
		return UsageInfo{
			InputTokens:  prompt,
			OutputTokens: eval,
			TotalTokens:  prompt + eval,
		}
	}

	return a.OpenAIAdapter.ExtractUsage(responseBody)
}

// ExtractResponseText reads message.content, falling back to choices[].
func (a *OllamaAdapter) ExtractResponseText(responseBody []byte) string {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return ""
	}
	if msg := gjson.GetBytes(responseBody, "message"); msg.IsObject() {
		return ContentText(msg.Get("content"), "\n")
	}
	return a.OpenAIAdapter.ExtractResponseText(responseBody)
}

// ResponseMessagePaths returns "message" for native responses.
func (a *OllamaAdapter) ResponseMessagePaths(responseBody []byte) []string {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return nil
	}
	if gjson.GetBytes(responseBody, "message").IsObject() {
		return []string{"message"}
	}
	return a.OpenAIAdapter.ResponseMessagePaths(responseBody)
}

// Ensure OllamaAdapter implements Adapter
var _ Adapter = (*OllamaAdapter)(nil)
