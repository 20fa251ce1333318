package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records operation counts and durations through OpenTelemetry,
// exported on the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

// New never fails: without an exporter the recorder is a no-op.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"ssa.operations",
		otelmetric.WithDescription("Number of completed operations"),
	)
	opDuration, _ := meter.Float64Histogram(
		"ssa.operation.duration",
		otelmetric.WithDescription("Operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

// NewNoop returns a recorder that drops everything.
func NewNoop() *Observability {
	return &Observability{}
}

// RecordOperation counts one finished operation and its duration.
func (o *Observability) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
