// Package removename strips the optional name attribute from chat messages.
//
// DESIGN: Several providers reject or mishandle the OpenAI "name" field on
// messages. This hook deletes it before the request leaves the gateway:
//
//  1. Reads messages[] with gjson (no full unmarshal)
//  2. Collects the paths of messages carrying the field (role filter applies)
//  3. Deletes them with sjson into a new body; the input is never mutated
//
// Optionally (post_call: true) the same field is removed from response
// messages. A missing attribute, a missing messages[] or an invalid body are
// no-ops, never failures.
package removename

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/context-hooks/internal/adapters"
	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/hooks"
	"github.com/compresr/context-hooks/internal/monitoring"
)

// Hook removes the name attribute from messages.
type Hook struct {
	enabled  bool
	postCall bool
	field    string
	roles    map[string]struct{}
	metrics  *monitoring.MetricsCollector
}

// New creates a new name-field stripper. metrics may be nil.
func New(cfg *config.Config, metrics *monitoring.MetricsCollector) *Hook {
	rc := cfg.Hooks.RemoveName
	return &Hook{
		enabled:  rc.Enabled,
		postCall: rc.PostCall,
		field:    rc.FieldOrDefault(),
		roles:    RoleSet(rc.Roles),
		metrics:  metrics,
	}
}

// Name returns the hook name.
func (h *Hook) Name() string {
	return hooks.NameRemoveName
}

// Priority returns the hook priority.
func (h *Hook) Priority() int {
	return hooks.PriorityRemoveName
}

// Enabled returns whether the hook is active.
func (h *Hook) Enabled() bool {
	return h.enabled
}

// PreCall removes the field from every request message.
func (h *Hook) PreCall(_ context.Context, req *hooks.Request) (*hooks.Request, error) {
	if !h.enabled || req == nil {
		return req, nil
	}

	body, removed, err := Strip(req.Body, h.field, h.roles)
	if err != nil {
		if errors.Is(err, adapters.ErrInvalidJSON) {
			log.Debug().Str("request_id", req.RequestID).Msg("remove_name: body is not JSON, passing through")
			return req, nil
		}
		return req, err
	}
	if removed == 0 {
		return req, nil
	}

	h.metrics.RecordMutations(h.Name(), removed)
	log.Debug().
		Str("request_id", req.RequestID).
		Str("field", h.field).
		Int("removed", removed).
		Msg("remove_name: stripped messages")

	return req.WithBody(body), nil
}

// PostCall removes the field from response messages when post_call is set.
func (h *Hook) PostCall(_ context.Context, resp *hooks.Response) (*hooks.Response, error) {
	if !h.enabled || !h.postCall || resp == nil || resp.Adapter == nil || len(resp.Body) == 0 {
		return resp, nil
	}

	body, removed, err := StripPaths(resp.Body, resp.Adapter.ResponseMessagePaths(resp.Body), h.field)
	if err != nil {
		return resp, err
	}
	if removed == 0 {
		return resp, nil
	}

	h.metrics.RecordMutations(h.Name(), removed)
	return resp.WithBody(body), nil
}

// RoleSet builds a role filter. An empty filter matches every role.
func RoleSet(roles []string) map[string]struct{} {
	if len(roles) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Strip deletes field from every entry of messages[] whose role is in roles
// (nil roles = all roles). It returns the new body and the number of messages
// changed. The input slice is never modified; when nothing changes the input
// is returned as is.
func Strip(body []byte, field string, roles map[string]struct{}) ([]byte, int, error) {
	if !gjson.ValidBytes(body) {
		return body, 0, adapters.ErrInvalidJSON
	}

	list := gjson.GetBytes(body, adapters.MessagesPath)
	if !list.IsArray() {
		return body, 0, nil
	}

	var paths []string
	index := 0
	list.ForEach(func(_, msg gjson.Result) bool {
		if msg.IsObject() && msg.Get(field).Exists() && matchesRole(roles, msg.Get("role").String()) {
			paths = append(paths, fmt.Sprintf("%s.%d", adapters.MessagesPath, index))
		}
		index++
		return true
	})

	return StripPaths(body, paths, field)
}

// StripPaths deletes field from the objects at the given paths.
// Every occurrence of a repeated key is deleted; the count is per object.
func StripPaths(body []byte, paths []string, field string) ([]byte, int, error) {
	out := body
	removed := 0
	for _, path := range paths {
		target := path + "." + field
		if !gjson.GetBytes(out, target).Exists() {
			continue
		}
		for gjson.GetBytes(out, target).Exists() {
			next, err := sjson.DeleteBytes(out, target)
			if err != nil {
				return body, 0, fmt.Errorf("remove_name: failed to delete %s: %w", target, err)
			}
			if len(next) == len(out) {
				return body, 0, fmt.Errorf("remove_name: delete of %s made no progress", target)
			}
			out = next
		}
		removed++
	}
	return out, removed, nil
}

func matchesRole(roles map[string]struct{}, role string) bool {
	if roles == nil {
		return true
	}
	_, ok := roles[role]
	return ok
}

// Ensure Hook implements both call points
var (
	_ hooks.PreCallHook  = (*Hook)(nil)
	_ hooks.PostCallHook = (*Hook)(nil)
)
