// Package hooks provides message-transformation hooks for an LLM gateway.
//
// DESIGN: Hooks intercept and can modify requests/responses at two fixed
// extension points of the host's request lifecycle. They run INSIDE the
// host process, synchronously, on the request path.
//
// Pipeline flow:
//
//	Request → [PRE-CALL: remove_name → combine_system → interaction_log] → LLM API
//	                                                                        ↓
//	Response ← [POST-CALL: remove_name? → interaction_log] ←────────────────┘
//
// Order is fixed by Priority (lower = earlier), not by registration or
// config order: the stripper runs before the combiner so the merged system
// message never keeps a name, and the logger runs last so it records what
// actually leaves the gateway.
//
// The Registry never lets a hook break the request path: errors and panics
// are logged, counted and the chain continues with the last good value.
package hooks

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-hooks/internal/monitoring"
)

// Standard priorities.
const (
	PriorityRemoveName     = 10
	PriorityCombineSystem  = 20
	PriorityInteractionLog = 100
)

// Hook defines the interface for pipeline hooks.
type Hook interface {
	// Name returns the hook identifier
	Name() string

	// Priority determines execution order (lower = earlier)
	Priority() int

	// Enabled returns whether the hook should run
	Enabled() bool
}

// PreCallHook runs before the LLM API call.
// It returns the request to forward, which may be req itself.
type PreCallHook interface {
	Hook
	PreCall(ctx context.Context, req *Request) (*Request, error)
}

// PostCallHook runs after the LLM API response (success or failure).
// It returns the response to hand back, which may be resp itself.
type PostCallHook interface {
	Hook
	PostCall(ctx context.Context, resp *Response) (*Response, error)
}

// Registry holds registered hooks in execution order.
type Registry struct {
	hooks    []Hook
	preCall  []PreCallHook
	postCall []PostCallHook
	metrics  *monitoring.MetricsCollector
}

// NewRegistry creates a new hook registry. metrics may be nil.
func NewRegistry(metrics *monitoring.MetricsCollector) *Registry {
	return &Registry{
		hooks:    make([]Hook, 0),
		preCall:  make([]PreCallHook, 0),
		postCall: make([]PostCallHook, 0),
		metrics:  metrics,
	}
}

// Register adds a hook. A hook implementing both PreCallHook and
// PostCallHook is registered at both call points.
// Registration is not safe for concurrent use; build the registry at startup.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	sortByPriority(r.hooks)

	if pre, ok := h.(PreCallHook); ok {
		r.preCall = append(r.preCall, pre)
		sortByPriority(r.preCall)
	}
	if post, ok := h.(PostCallHook); ok {
		r.postCall = append(r.postCall, post)
		sortByPriority(r.postCall)
	}
}

func sortByPriority[T Hook](hooks []T) {
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority() < hooks[j].Priority()
	})
}

// Hooks returns all registered hooks in execution order.
func (r *Registry) Hooks() []Hook {
	out := make([]Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// PreCallHooks returns the enabled pre-call hook names in execution order.
func (r *Registry) PreCallHooks() []string {
	var names []string
	for _, h := range r.preCall {
		if h.Enabled() {
			names = append(names, h.Name())
		}
	}
	return names
}

// PostCallHooks returns the enabled post-call hook names in execution order.
func (r *Registry) PostCallHooks() []string {
	var names []string
	for _, h := range r.postCall {
		if h.Enabled() {
			names = append(names, h.Name())
		}
	}
	return names
}

// RunPreCall runs every enabled pre-call hook in order and returns the
// request to forward. It never fails: a hook that errors or panics is
// skipped and the previous request is kept.
func (r *Registry) RunPreCall(ctx context.Context, req *Request) *Request {
	if req == nil {
		return nil
	}
	for _, h := range r.preCall {
		if !h.Enabled() {
			continue
		}
		req = r.runPreCall(ctx, h, req)
	}
	return req
}

// RunPostCall runs every enabled post-call hook in order and returns the
// response to hand back. Like RunPreCall, it never fails.
func (r *Registry) RunPostCall(ctx context.Context, resp *Response) *Response {
	if resp == nil {
		return nil
	}
	for _, h := range r.postCall {
		if !h.Enabled() {
			continue
		}
		resp = r.runPostCall(ctx, h, resp)
	}
	return resp
}

func (r *Registry) runPreCall(ctx context.Context, h PreCallHook, req *Request) (out *Request) {
	out = req
	defer func() {
		if p := recover(); p != nil {
			r.fault(h.Name(), monitoring.CallSitePreCall, monitoring.FaultPanic, req.RequestID, p)
			out = req
		}
	}()

	r.metrics.RecordInvocation(h.Name(), monitoring.CallSitePreCall)
	next, err := h.PreCall(ctx, req)
	if err != nil {
		r.fault(h.Name(), monitoring.CallSitePreCall, monitoring.FaultError, req.RequestID, err)
		return req
	}
	if next == nil {
		return req
	}
	return next
}

func (r *Registry) runPostCall(ctx context.Context, h PostCallHook, resp *Response) (out *Response) {
	out = resp
	defer func() {
		if p := recover(); p != nil {
			r.fault(h.Name(), monitoring.CallSitePostCall, monitoring.FaultPanic, resp.RequestID, p)
			out = resp
		}
	}()

	r.metrics.RecordInvocation(h.Name(), monitoring.CallSitePostCall)
	next, err := h.PostCall(ctx, resp)
	if err != nil {
		r.fault(h.Name(), monitoring.CallSitePostCall, monitoring.FaultError, resp.RequestID, err)
		return resp
	}
	if next == nil {
		return resp
	}
	return next
}

func (r *Registry) fault(hook string, site monitoring.CallSite, kind monitoring.FaultKind, requestID string, cause any) {
	r.metrics.RecordFault(hook, site, kind)
	event := log.Warn().
		Str("hook", hook).
		Str("call_site", string(site)).
		Str("kind", string(kind)).
		Str("request_id", requestID)
	if err, ok := cause.(error); ok {
		event = event.Err(err)
	} else {
		event = event.Interface("panic", cause)
	}
	event.Msg("hook failed, passing through")
}
