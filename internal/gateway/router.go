// Package gateway is the host-side entry point to the hook chain.
//
// DESIGN: The Router is built once at startup and owns:
//   - the adapter registry (provider resolution for each payload)
//   - the hook registry, with every hook registered in priority order
//   - the metrics collector shared by all hooks
//
// The host calls NewRequest → PreCall before forwarding to the model, and
// NewResponse → PostCall when the backend answers. Neither call can fail:
// the worst case is the payload passing through unchanged.
package gateway

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-hooks/internal/adapters"
	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/hooks"
	combinesystem "github.com/compresr/context-hooks/internal/hooks/combine_system"
	interactionlog "github.com/compresr/context-hooks/internal/hooks/interaction_log"
	removename "github.com/compresr/context-hooks/internal/hooks/remove_name"
	"github.com/compresr/context-hooks/internal/monitoring"
)

// Options carries the Router's injected dependencies.
type Options struct {
	// Sink receives interaction log records. Nil opens hooks.interaction_log.output.
	Sink io.Writer

	// Metrics receives hook counters. Nil creates a private collector.
	Metrics *monitoring.MetricsCollector
}

// Router runs requests and responses through the hook chain.
type Router struct {
	config   *config.Config
	adapters *adapters.Registry
	registry *hooks.Registry
	metrics  *monitoring.MetricsCollector
	closers  []io.Closer
}

// NewRouter creates a router with every hook registered.
func NewRouter(cfg *config.Config, opts Options) *Router {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}

	logger := interactionlog.New(cfg, opts.Sink, metrics)

	registry := hooks.NewRegistry(metrics)
	registry.Register(removename.New(cfg, metrics))
	registry.Register(combinesystem.New(cfg, metrics))
	registry.Register(logger)

	log.Debug().
		Strs("pre_call", registry.PreCallHooks()).
		Strs("post_call", registry.PostCallHooks()).
		Msg("hook chain built")

	return &Router{
		config:   cfg,
		adapters: adapters.NewRegistry(),
		registry: registry,
		metrics:  metrics,
		closers:  []io.Closer{logger},
	}
}

// NewRequest wraps a raw payload. provider is an optional hint
// ("openai", "anthropic", "ollama"); without it the model prefix decides.
func (r *Router) NewRequest(provider string, body []byte) *hooks.Request {
	return hooks.NewRequest(r.adapters.Resolve(provider, body), body)
}

// NewResponse wraps a backend answer for req.
func (r *Router) NewResponse(req *hooks.Request, statusCode int, body []byte, err error) *hooks.Response {
	return hooks.NewResponse(req, statusCode, body, err)
}

// PreCall runs the pre-call chain and returns the request to forward.
func (r *Router) PreCall(ctx context.Context, req *hooks.Request) *hooks.Request {
	if req == nil {
		return nil
	}
	ctx = monitoring.WithRequestIDContext(ctx, req.RequestID)

	start := time.Now()
	out := r.registry.RunPreCall(ctx, req)
	log.Debug().
		Str("request_id", req.RequestID).
		Str("provider", req.Provider.String()).
		Str("model", req.Model).
		Int("body_size", len(req.Body)).
		Int("out_size", len(out.Body)).
		Dur("duration", time.Since(start)).
		Msg("pre_call")
	return out
}

// PostCall runs the post-call chain and returns the response to hand back.
func (r *Router) PostCall(ctx context.Context, resp *hooks.Response) *hooks.Response {
	if resp == nil {
		return nil
	}
	ctx = monitoring.WithRequestIDContext(ctx, resp.RequestID)

	out := r.registry.RunPostCall(ctx, resp)
	log.Debug().
		Str("request_id", resp.RequestID).
		Int("status", resp.StatusCode).
		Bool("success", resp.Success()).
		Msg("post_call")
	return out
}

// Chain returns the registered hooks in execution order.
func (r *Router) Chain() []hooks.Hook {
	return r.registry.Hooks()
}

// Metrics returns the router's metrics collector.
func (r *Router) Metrics() *monitoring.MetricsCollector {
	return r.metrics
}

// Close releases sinks opened by the hooks.
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
