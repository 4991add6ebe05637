package adapters

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a payload is not valid JSON.
var ErrInvalidJSON = errors.New("payload is not valid JSON")

// Provider identifies an upstream LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderUnknown   Provider = "unknown"
)

// String returns the provider name.
func (p Provider) String() string {
	return string(p)
}

// Roles used by chat payloads.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)

// MessagesPath is the JSON path of the request message list.
const MessagesPath = "messages"

// Message is a read-only view of one entry of the request message list.
type Message struct {
	Index      int          // Position in messages[]
	Role       string       // Empty when missing or when the entry is not an object
	Content    gjson.Result // String, content-part array, null or missing
	Name       string       // Optional display name
	HasName    bool         // Whether the name attribute is present at all
	ToolCallID string       // Optional tool call id
	IsObject   bool         // False for malformed entries (strings, numbers, null)
	Raw        string       // Raw JSON of the entry
}

// IsSystem reports whether the message carries the system role.
func (m Message) IsSystem() bool {
	return m.IsObject && m.Role == RoleSystem
}

// Text returns the content flattened to text. See ContentText.
func (m Message) Text(sep string) string {
	return ContentText(m.Content, sep)
}

// UsageInfo contains token usage extracted from an API response.
type UsageInfo struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ContentText flattens a message content value to text:
//   - string: verbatim
//   - array of {"type":"text"} parts: texts joined by sep
//   - null or missing: ""
//   - anything else (mixed part arrays, objects, numbers, booleans): raw JSON
func ContentText(content gjson.Result, sep string) string {
	switch {
	case !content.Exists() || content.Type == gjson.Null:
		return ""
	case content.Type == gjson.String:
		return content.String()
	case content.IsArray():
		parts := content.Array()
		texts := make([]string, 0, len(parts))
		for _, part := range parts {
			if !part.IsObject() || part.Get("type").String() != "text" {
				return content.Raw
			}
			texts = append(texts, part.Get("text").String())
		}
		return strings.Join(texts, sep)
	default:
		return content.Raw
	}
}

// extractChatMessages reads messages[] from a chat-style request body.
func extractChatMessages(body []byte) ([]Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	list := gjson.GetBytes(body, MessagesPath)
	if !list.IsArray() {
		return nil, nil
	}

	var messages []Message
	index := 0
	list.ForEach(func(_, value gjson.Result) bool {
		msg := Message{Index: index, Raw: value.Raw}
		if value.IsObject() {
			msg.IsObject = true
			msg.Role = value.Get("role").String()
			msg.Content = value.Get("content")
			if name := value.Get("name"); name.Exists() {
				msg.Name = name.String()
				msg.HasName = true
			}
			msg.ToolCallID = value.Get("tool_call_id").String()
		}
		messages = append(messages, msg)
		index++
		return true
	})

	return messages, nil
}

// extractModel reads the top-level model field and strips a provider prefix.
func extractModel(body []byte, prefix string) string {
	if len(body) == 0 {
		return ""
	}
	model := gjson.GetBytes(body, "model").String()
	return strings.TrimPrefix(model, prefix)
}
