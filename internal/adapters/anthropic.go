package adapters

import (
	"strings"

	"github.com/tidwall/gjson"
)

// AnthropicAdapter handles Anthropic Messages API payloads.
// The system prompt normally travels in the top-level "system" field, so
// messages[] rarely holds system entries; hosts that normalise to the OpenAI
// shape before routing still send them there.
type AnthropicAdapter struct {
	BaseAdapter
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{
		BaseAdapter: BaseAdapter{
			name:     "anthropic",
			provider: ProviderAnthropic,
		},
	}
}

// ExtractMessages returns messages[] in order.
func (a *AnthropicAdapter) ExtractMessages(body []byte) ([]Message, error) {
	return extractChatMessages(body)
}

// ExtractModel extracts the model name from Anthropic request body.
// Strips the "anthropic/" prefix (e.g., "anthropic/claude-3-5-sonnet" -> "claude-3-5-sonnet").
func (a *AnthropicAdapter) ExtractModel(requestBody []byte) string {
	return extractModel(requestBody, "anthropic/")
}

// ExtractUsage extracts token usage from Anthropic API response.
// Anthropic format: {"usage": {"input_tokens": N, "output_tokens": N}}
func (a *AnthropicAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return UsageInfo{}
	}

	usage := gjson.GetBytes(responseBody, "usage")
	input := int(usage.Get("input_tokens").Int())
	output := int(usage.Get("output_tokens").Int())
	return UsageInfo{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
}

// ExtractResponseText joins the text blocks of content[].
func (a *AnthropicAdapter) ExtractResponseText(responseBody []byte) string {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return ""
	}

	var texts []string
	for _, text := range gjson.GetBytes(responseBody, `content.#(type=="text")#.text`).Array() {
		texts = append(texts, text.String())
	}
	return strings.Join(texts, "\n")
}

// ResponseMessagePaths returns nil: an Anthropic response is itself the
// assistant message and carries no per-message attributes.
func (a *AnthropicAdapter) ResponseMessagePaths(_ []byte) []string {
	return nil
}

// Ensure AnthropicAdapter implements Adapter
var _ Adapter = (*AnthropicAdapter)(nil)
