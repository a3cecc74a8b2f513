// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry holds the masking run metrics and tracing helpers.
// Metrics live in a private prometheus registry and are written to a
// textfile on demand. Spans go to the global OpenTelemetry provider,
// which is a no-op unless the process installs one.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	namespace       = "pii_masker"
	instrumentation = "github.com/pdiddy/pii-masker"
)

// Metrics records masking run counters. A nil *Metrics ignores every call.
type Metrics struct {
	reg *prometheus.Registry

	files      *prometheus.CounterVec
	located    *prometheus.CounterVec
	notLocated *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	fallbacks  prometheus.Counter
	redacted   prometheus.Counter
	stages     *prometheus.HistogramVec
	auditDrops prometheus.Counter
}

// NewMetrics registers the run metrics in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_total",
			Help: "Files processed, by terminal status.",
		}, []string{"status"}),
		located: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entities_located_total",
			Help: "Occurrences resolved to regions, by source.",
		}, []string{"source"}),
		notLocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "entities_unresolved_total",
			Help: "Occurrences that could not be resolved, by reason.",
		}, []string{"reason"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "decisions_total",
			Help: "Masking decisions, by action.",
		}, []string{"action"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decision_fallbacks_total",
			Help: "Decisions replaced by the fallback after an error or timeout.",
		}),
		redacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "regions_redacted_total",
			Help: "Regions blacked out in written artifacts.",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_duration_seconds",
			Help:    "Time spent per file in each stage.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		auditDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_events_dropped_total",
			Help: "Audit events dropped because the queue was full.",
		}),
	}
	m.reg.MustRegister(m.files, m.located, m.notLocated, m.decisions, m.fallbacks, m.redacted, m.stages, m.auditDrops)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// FileFinished counts a file in its terminal status.
func (m *Metrics) FileFinished(status string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
}

// Located counts one resolved occurrence.
func (m *Metrics) Located(source string) {
	if m == nil {
		return
	}
	m.located.WithLabelValues(source).Inc()
}

// Unresolved counts one failed occurrence.
func (m *Metrics) Unresolved(reason string) {
	if m == nil {
		return
	}
	m.notLocated.WithLabelValues(reason).Inc()
}

// Decided counts a decision.
func (m *Metrics) Decided(action string, fallback bool) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action).Inc()
	if fallback {
		m.fallbacks.Inc()
	}
}

// Redacted adds n written regions.
func (m *Metrics) Redacted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.redacted.Add(float64(n))
}

// ObserveStage records how long a file spent in stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// AuditDropped counts a dropped audit event.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDrops.Inc()
}

// WriteFile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StartSpan starts a span named name with string attributes given as
// key/value pairs.
func StartSpan(ctx context.Context, name string, kv ...string) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}
