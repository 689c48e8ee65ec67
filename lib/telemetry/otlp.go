package telemetry

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// exporterConfig is one OTLP endpoint, grpc wins when both are set.
type exporterConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
	// Timeout bounds each export, defaults to 10s.
	Timeout string `json:"timeout"`
}

func (e exporterConfig) configured() bool {
	return e.GrpcEndpoint != "" || e.HttpEndpoint != ""
}

func (e exporterConfig) protocol() string {
	if e.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

func (e exporterConfig) endpoint() string {
	if e.GrpcEndpoint != "" {
		return e.GrpcEndpoint
	}
	return e.HttpEndpoint
}

func (e exporterConfig) timeout() time.Duration {
	return parseDurationOr(e.Timeout, 10*time.Second)
}

type config struct {
	Otlp struct {
		Traces  exporterConfig `json:"traces"`
		Metrics exporterConfig `json:"metrics"`
	} `json:"otlp"`
	// MetricInterval is how often metrics are pushed, defaults to 15s.
	MetricInterval string `json:"metric_interval"`
	// SampleRatio keeps this share of root traces, 0 keeps every trace.
	SampleRatio float64 `json:"sample_ratio"`
	// Attributes are added to the resource, "deployment.environment" or the
	// host running scheduled scrapes.
	Attributes map[string]string `json:"attributes"`
}

func parseDurationOr(text string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(text)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c config) metricInterval() time.Duration {
	return parseDurationOr(c.MetricInterval, 15*time.Second)
}

// Service describes the process exporting telemetry.
type Service struct {
	Name string
	// Command is the cli command being run.
	Command string
	// Brands are the brands the command works on.
	Brands []string
}

func (s Service) resource(extra map[string]string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(s.Name)}
	if s.Command != "" {
		attrs = append(attrs, attribute.String("inventory.command", s.Command))
	}
	if len(s.Brands) > 0 {
		attrs = append(attrs, attribute.StringSlice("inventory.brands", s.Brands))
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, extra[k]))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

func sampler(ratio float64) trace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(ratio))
}

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg config) (*trace.TracerProvider, error) {
	exporter, err := newSpanExporter(ctx, cfg.Otlp.Traces)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
		trace.WithSampler(sampler(cfg.SampleRatio)),
	), nil
}

func newSpanExporter(ctx context.Context, e exporterConfig) (trace.SpanExporter, error) {
	if e.protocol() == "grpc" {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
			otlptracegrpc.WithHeaders(e.Headers),
			otlptracegrpc.WithTimeout(e.timeout()),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(e.HttpEndpoint),
		otlptracehttp.WithHeaders(e.Headers),
		otlptracehttp.WithTimeout(e.timeout()),
	)
}

func newMetricProvider(ctx context.Context, r *resource.Resource, cfg config) (*metric.MeterProvider, error) {
	exporter, err := newMetricExporter(ctx, cfg.Otlp.Metrics)
	if err != nil {
		return nil, err
	}
	reader := metric.NewPeriodicReader(exporter, metric.WithInterval(cfg.metricInterval()))
	return metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(r)), nil
}

func newMetricExporter(ctx context.Context, e exporterConfig) (metric.Exporter, error) {
	if e.protocol() == "grpc" {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
			otlpmetricgrpc.WithTimeout(e.timeout()),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
		otlpmetrichttp.WithHeaders(e.Headers),
		otlpmetrichttp.WithTimeout(e.timeout()),
	)
}
