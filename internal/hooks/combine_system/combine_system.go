// Package combinesystem merges multiple system messages into one.
//
// DESIGN: Some providers reject more than one system message, or only honour
// the first. This hook rewrites messages[] so that:
//   - the first system message stays where it is and receives the ordered
//     join of every system content (separator default "\n")
//   - every other system message is removed
//   - non-system messages keep their order
//
// Zero or one system message: the body is returned untouched.
//
// Structured content uses a single policy, stringify: text-part arrays
// contribute their text, anything else its raw JSON (adapters.ContentText).
// Entries that are not objects or have no role are kept verbatim.
package combinesystem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/context-hooks/internal/adapters"
	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/hooks"
	"github.com/compresr/context-hooks/internal/monitoring"
)

// Hook combines system messages.
type Hook struct {
	enabled   bool
	separator string
	metrics   *monitoring.MetricsCollector
}

// New creates a new system-message combiner. metrics may be nil.
func New(cfg *config.Config, metrics *monitoring.MetricsCollector) *Hook {
	return &Hook{
		enabled:   cfg.Hooks.CombineSystem.Enabled,
		separator: cfg.Hooks.CombineSystem.SeparatorOrDefault(),
		metrics:   metrics,
	}
}

// Name returns the hook name.
func (h *Hook) Name() string {
	return hooks.NameCombineSystem
}

// Priority returns the hook priority.
func (h *Hook) Priority() int {
	return hooks.PriorityCombineSystem
}

// Enabled returns whether the hook is active.
func (h *Hook) Enabled() bool {
	return h.enabled
}

// PreCall merges the request's system messages.
func (h *Hook) PreCall(_ context.Context, req *hooks.Request) (*hooks.Request, error) {
	if !h.enabled || req == nil {
		return req, nil
	}

	body, merged, err := Combine(req.Body, h.separator)
	if err != nil {
		if errors.Is(err, adapters.ErrInvalidJSON) {
			log.Debug().Str("request_id", req.RequestID).Msg("combine_system: body is not JSON, passing through")
			return req, nil
		}
		return req, err
	}
	if merged == 0 {
		return req, nil
	}

	h.metrics.RecordMutations(h.Name(), merged)
	log.Debug().
		Str("request_id", req.RequestID).
		Int("merged", merged+1).
		Msg("combine_system: merged system messages")

	return req.WithBody(body), nil
}

// Combine merges every system message of messages[] into the first one.
// It returns the new body and the number of system messages removed
// (0 when there was nothing to merge, in which case body is returned as is).
func Combine(body []byte, separator string) ([]byte, int, error) {
	if !gjson.ValidBytes(body) {
		return body, 0, adapters.ErrInvalidJSON
	}

	list := gjson.GetBytes(body, adapters.MessagesPath)
	if !list.IsArray() {
		return body, 0, nil
	}

	items := list.Array()
	var system []int
	for i, msg := range items {
		if isSystem(msg) {
			system = append(system, i)
		}
	}
	if len(system) <= 1 {
		return body, 0, nil
	}

	contents := make([]string, 0, len(system))
	for _, i := range system {
		contents = append(contents, adapters.ContentText(items[i].Get("content"), separator))
	}

	first := system[0]
	merged, err := setContent(items[first].Raw, strings.Join(contents, separator))
	if err != nil {
		return body, 0, fmt.Errorf("combine_system: failed to set merged content: %w", err)
	}

	var b strings.Builder
	b.Grow(len(list.Raw))
	b.WriteByte('[')
	written := 0
	for i, msg := range items {
		raw := msg.Raw
		switch {
		case i == first:
			raw = merged
		case isSystem(msg):
			continue
		}
		if written > 0 {
			b.WriteByte(',')
		}
		b.WriteString(raw)
		written++
	}
	b.WriteByte(']')

	out, err := sjson.SetRawBytes(body, adapters.MessagesPath, []byte(b.String()))
	if err != nil {
		return body, 0, fmt.Errorf("combine_system: failed to rewrite messages: %w", err)
	}
	return out, len(system) - 1, nil
}

// setContent replaces every "content" key of the raw message object with a
// single string value.
func setContent(raw, content string) (string, error) {
	for gjson.Get(raw, "content").Exists() {
		next, err := sjson.Delete(raw, "content")
		if err != nil {
			return "", err
		}
		if len(next) == len(raw) {
			return "", fmt.Errorf("delete of content made no progress")
		}
		raw = next
	}
	return sjson.Set(raw, "content", content)
}

func isSystem(msg gjson.Result) bool {
	return msg.IsObject() && msg.Get("role").String() == adapters.RoleSystem
}

// Ensure Hook implements PreCallHook
var _ hooks.PreCallHook = (*Hook)(nil)
