// Package monitoring - metrics.go provides hook counters.
//
// DESIGN: Prometheus counters on a private registry:
//   - invocations: Hook runs per call site
//   - faults:      Errors and panics swallowed by the registry
//   - mutations:   Message-level changes (names removed, system messages merged)
//
// All methods are nil-safe so hooks can run without a collector.
package monitoring

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// MetricsCollector collects hook metrics.
type MetricsCollector struct {
	registry    *prometheus.Registry
	Invocations *prometheus.CounterVec
	Faults      *prometheus.CounterVec
	Mutations   *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector with a custom registry.
func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_hooks_invocations_total",
				Help: "Total number of hook invocations by hook and call site",
			},
			[]string{"hook", "call_site"},
		),
		Faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_hooks_faults_total",
				Help: "Total number of swallowed hook faults by hook, call site and kind",
			},
			[]string{"hook", "call_site", "kind"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_hooks_message_mutations_total",
				Help: "Total number of message-level changes made by a hook",
			},
			[]string{"hook"},
		),
	}
}

// Registry returns the prometheus registry backing the collector.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}

// RecordInvocation records a hook run.
func (mc *MetricsCollector) RecordInvocation(hook string, site CallSite) {
	if mc == nil {
		return
	}
	mc.Invocations.WithLabelValues(hook, string(site)).Inc()
}

// RecordFault records a swallowed hook failure.
func (mc *MetricsCollector) RecordFault(hook string, site CallSite, kind FaultKind) {
	if mc == nil {
		return
	}
	mc.Faults.WithLabelValues(hook, string(site), string(kind)).Inc()
}

// RecordMutations records n message-level changes.
func (mc *MetricsCollector) RecordMutations(hook string, n int) {
	if mc == nil || n <= 0 {
		return
	}
	mc.Mutations.WithLabelValues(hook).Add(float64(n))
}

// WriteText writes every metric in the Prometheus text exposition format.
func (mc *MetricsCollector) WriteText(w io.Writer) error {
	if mc == nil {
		return nil
	}
	families, err := mc.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
