package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"mercator-hq/cadence/pkg/config"
)

const instrumentationName = "mercator-hq/cadence"

// Version is reported as service.version on the trace resource. The cadence
// binary overwrites it with its own build version before calling New.
var Version = "dev"

// Tracer owns the process tracer provider. An enabled Tracer installs its
// provider and the W3C propagators globally.
type Tracer struct {
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
}

// New builds a Tracer exporting to cfg.Endpoint over OTLP gRPC. A disabled
// config yields a noop Tracer and leaves the global provider alone.
//
// Callers own shutdown:
//
//	defer tracer.Shutdown(context.Background())
func New(cfg *config.TracingConfig) (*Tracer, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}
	if !cfg.Enabled {
		return &Tracer{provider: noop.NewTracerProvider()}, nil
	}

	exporter, err := dialCollector(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithExporter(cfg, exporter)
}

// NewWithExporter builds an enabled Tracer around exporter. Tests pass an
// in-memory exporter.
func NewWithExporter(cfg *config.TracingConfig, exporter sdktrace.SpanExporter) (*Tracer, error) {
	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: sdk, sdk: sdk}, nil
}

// Named returns the tracer for one cadence component, for example
// Named("pipeline") for the trigger pipeline spans.
func (t *Tracer) Named(component string) trace.Tracer {
	return t.provider.Tracer(instrumentationName + "/" + component)
}

// Enabled reports whether spans are exported.
func (t *Tracer) Enabled() bool {
	return t.sdk != nil
}

// Shutdown flushes buffered spans. It is a no-op for a disabled Tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.sdk == nil {
		return nil
	}
	return t.sdk.Shutdown(ctx)
}

// End closes span, marking it failed with err or ok when err is nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func dialCollector(cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTracingTimeout
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(timeout),
		otlptracegrpc.WithDialOption(grpc.WithBlock()),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to trace collector %s: %w", cfg.Endpoint, err)
	}
	return exporter, nil
}
