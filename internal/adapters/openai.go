package adapters

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// OpenAIAdapter handles OpenAI Chat Completions payloads:
//
//	request:  {"model": "...", "messages": [{role, content, name?, tool_call_id?}]}
//	response: {"choices": [{"message": {role, content}}], "usage": {...}}
type OpenAIAdapter struct {
	BaseAdapter
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{
		BaseAdapter: BaseAdapter{
			name:     "openai",
			provider: ProviderOpenAI,
		},
	}
}

// ExtractMessages returns messages[] in order.
func (a *OpenAIAdapter) ExtractMessages(body []byte) ([]Message, error) {
	return extractChatMessages(body)
}

// ExtractModel extracts the model name from request body.
// Strips an "openai/" routing prefix if present.
func (a *OpenAIAdapter) ExtractModel(requestBody []byte) string {
	return extractModel(requestBody, "openai/")
}

// ExtractUsage extracts token usage from OpenAI API response.
// OpenAI format: {"usage": {"prompt_tokens": N, "completion_tokens": N, "total_tokens": N}}
func (a *OpenAIAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return UsageInfo{}
	}

	usage := gjson.GetBytes(responseBody, "usage")
	if !usage.Exists() {
		return UsageInfo{}
	}

	info := UsageInfo{
		InputTokens:  int(usage.Get("prompt_tokens").Int()),
		OutputTokens: int(usage.Get("completion_tokens").Int()),
		TotalTokens:  int(usage.Get("total_tokens").Int()),
	}
	if info.TotalTokens == 0 {
		info.TotalTokens = info.InputTokens + info.OutputTokens
	}
	return info
}

// ExtractResponseText joins the message content of every choice.
func (a *OpenAIAdapter) ExtractResponseText(responseBody []byte) string {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return ""
	}

	var texts []string
	gjson.GetBytes(responseBody, "choices").ForEach(func(_, choice gjson.Result) bool {
		if text := ContentText(choice.Get("message.content"), "\n"); text != "" {
			texts = append(texts, text)
		}
		return true
	})
	return strings.Join(texts, "\n")
}

// ResponseMessagePaths returns "choices.N.message" for every choice carrying a message.
func (a *OpenAIAdapter) ResponseMessagePaths(responseBody []byte) []string {
	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return nil
	}

	var paths []string
	index := 0
	gjson.GetBytes(responseBody, "choices").ForEach(func(_, choice gjson.Result) bool {
		if choice.Get("message").IsObject() {
			paths = append(paths, fmt.Sprintf("choices.%d.message", index))
		}
		index++
		return true
	})
	return paths
}

// Ensure OpenAIAdapter implements Adapter
var _ Adapter = (*OpenAIAdapter)(nil)
