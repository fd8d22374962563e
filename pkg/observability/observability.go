// Package observability wires OpenTelemetry tracing and metrics for the
// orchestration core. Metrics are exported in Prometheus format and served
// by the HTTP layer at /metrics.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Span names used across the core.
const (
	SpanModelGenerate = "llm.generate"
	SpanToolExecution = "tool.execute"
	SpanGroupStep     = "groupchat.step"
	SpanWorkflowStep  = "workflow.step"
)

// Attribute keys.
const (
	AttrProvider = "llm.provider"
	AttrModel    = "llm.model"
	AttrToolName = "tool.name"
	AttrAgent    = "agent.name"
	AttrGroupID  = "group.id"
)

var (
	initOnce sync.Once
	handler  http.Handler
	metrics  *Metrics
)

// Metrics aggregates the core's counters and histograms.
type Metrics struct {
	modelCalls   metric.Int64Counter
	modelErrors  metric.Int64Counter
	toolDuration metric.Float64Histogram
	turnDuration metric.Float64Histogram
	eventsOut    metric.Int64Counter
}

// Init sets up the Prometheus-backed meter provider. Safe to call more than
// once; only the first call takes effect.
func Init() error {
	var err error
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		var exporter *otelprom.Exporter
		exporter, err = otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return
		}

		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(provider)
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

		metrics, err = newMetrics(provider.Meter("coworker"))
	})
	return err
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.modelCalls, err = meter.Int64Counter("coworker_model_calls_total",
		metric.WithDescription("Provider generate calls")); err != nil {
		return nil, err
	}
	if m.modelErrors, err = meter.Int64Counter("coworker_model_errors_total",
		metric.WithDescription("Provider generate failures")); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram("coworker_tool_duration_seconds",
		metric.WithDescription("Tool execution latency")); err != nil {
		return nil, err
	}
	if m.turnDuration, err = meter.Float64Histogram("coworker_turn_duration_seconds",
		metric.WithDescription("Group chat turn latency")); err != nil {
		return nil, err
	}
	if m.eventsOut, err = meter.Int64Counter("coworker_stream_events_total",
		metric.WithDescription("Events pushed to stream subscribers")); err != nil {
		return nil, err
	}
	return m, nil
}

// MetricsHandler returns the /metrics handler, or nil when Init was not
// called.
func MetricsHandler() http.Handler {
	return handler
}

// GetMetrics returns the global metrics, or nil when Init was not called.
// Callers must nil-check; the core runs fine without metrics (tests).
func GetMetrics() *Metrics {
	return metrics
}

// GetTracer returns a named tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func (m *Metrics) RecordModelCall(ctx context.Context, provider, model string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
	m.modelCalls.Add(ctx, 1, attrs)
	if err != nil {
		m.modelErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrToolName, tool)))
}

func (m *Metrics) RecordTurn(ctx context.Context, groupID string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrGroupID, groupID)))
}

func (m *Metrics) RecordStreamEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsOut.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", eventType)))
}
