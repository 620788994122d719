package hooks

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/toolhost/domain/hook"
)

// MeterName identifies the instrumentation scope of the metrics hook.
const MeterName = "github.com/felixgeelhaar/toolhost"

// Metric names.
const (
	MetricInvocations = "toolhost.tool.invocations"
	MetricDuration    = "toolhost.tool.duration"
)

// Metrics records invocation counts and latency as OpenTelemetry metrics.
type Metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates a metrics hook provider. A nil provider uses the
// global meter provider.
func NewMetrics(provider metric.MeterProvider, version string) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(MeterName, metric.WithInstrumentationVersion(version))

	invocations, err := meter.Int64Counter(MetricInvocations,
		metric.WithDescription("Number of tool invocations by outcome"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricInvocations, err)
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDuration, err)
	}
	return &Metrics{invocations: invocations, duration: duration}, nil
}

// RegisterHooks implements hook.Provider.
func (m *Metrics) RegisterHooks(p *hook.Pipeline) {
	p.OnAfter("metrics", func(ctx context.Context, ev AfterEvent) error {
		m.record(ctx, ev.Invocation.Tool, OutcomeSuccess, ev.Duration.Seconds())
		return nil
	})
	p.OnFailure("metrics", func(ctx context.Context, ev FailureEvent) error {
		m.record(ctx, ev.Invocation.Tool, OutcomeOf(ev.Cause), ev.Duration.Seconds())
		return nil
	})
}

func (m *Metrics) record(ctx context.Context, name, outcome string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("outcome", outcome),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
}
