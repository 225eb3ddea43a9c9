package observability

import (
	"context"
	"fmt"
	"time"

	"registry-workers/internal/dedup"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Options configures New.
type Options struct {
	ServiceName    string
	JaegerEndpoint string
	// Registerer receives the prometheus exporter; nil means the default
	// registry served on /metrics.
	Registerer promclient.Registerer
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider tracerProvider
	meter          otelmetric.Meter
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	checkCounter   otelmetric.Int64Counter
	checkDuration  otelmetric.Float64Histogram
}

// New sets up the global meter provider (prometheus exporter) and, when a
// jaeger endpoint is configured, the global tracer provider. Setup failures
// leave the affected signal as a no-op.
func New(opts Options) (*Observability, error) {
	o := &Observability{}

	exporterOpts := []prometheus.Option{}
	if opts.Registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return o, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(o.meterProvider)
	o.meter = o.meterProvider.Meter(opts.ServiceName)

	o.jobCounter, _ = o.meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	o.jobDuration, _ = o.meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	o.checkCounter, _ = o.meter.Int64Counter(
		"dedup.checks",
		otelmetric.WithDescription("Duplicate checks by entity type and recommendation"),
	)
	o.checkDuration, _ = o.meter.Float64Histogram(
		"dedup.check.duration",
		otelmetric.WithDescription("Duplicate check duration"),
		otelmetric.WithUnit("ms"),
	)

	if opts.JaegerEndpoint != "" {
		tp, err := newJaegerTracerProvider(opts.ServiceName, opts.JaegerEndpoint)
		if err != nil {
			return o, err
		}
		o.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	return o, nil
}

// Tracer returns a tracer from the global provider.
func (o *Observability) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
		))
	}
}

// ObserveScan implements dedup.ScanObserver.
func (o *Observability) ObserveScan(ctx context.Context, event dedup.ScanEvent) error {
	attrs := otelmetric.WithAttributes(
		attribute.String("entity_type", event.EntityType),
		attribute.String("recommendation", string(event.Recommendation)),
		attribute.String("algorithm", event.Algorithm.String()),
	)
	if o.checkCounter != nil {
		o.checkCounter.Add(ctx, 1, attrs)
	}
	if o.checkDuration != nil {
		o.checkDuration.Record(ctx, float64(event.Duration.Microseconds())/1000, attrs)
	}
	return nil
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
