// Package observability provides OpenTelemetry tracing for the coordinator
// and the driver. Trace context crosses the cargo process boundary through
// the environment, so every driver process joins the coordinator's trace.
package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "rustcplugin"

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs the global tracer provider and the W3C trace context
// propagator. Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Driver processes are short-lived, so spans are exported synchronously
	// rather than batched and lost on exit.
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartCoordinatorSpan starts the root span of one plugin run.
func StartCoordinatorSpan(ctx context.Context, filter string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "rustcplugin.coordinate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("rustcplugin.filter", filter)),
	)
}

// StartDriverSpan starts the span of one driver process, i.e. one
// compilation unit.
func StartDriverSpan(ctx context.Context, crateName string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "rustcplugin.driver",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("rustc.crate_name", crateName)),
	)
}

// RecordExit records a process exit code on a span.
func RecordExit(span trace.Span, code int, err error) {
	span.SetAttributes(attribute.Int("process.exit_code", code))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if code != 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("exit status %d", code))
	}
}

// InjectEnv returns the trace context of ctx as environment variables
// (TRACEPARENT, TRACESTATE) for a child process.
func InjectEnv(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	env := make(map[string]string, len(carrier))
	for k, v := range carrier {
		env[strings.ToUpper(k)] = v
	}
	return env
}

// ExtractEnv continues the trace recorded in the environment by a parent
// process's InjectEnv.
func ExtractEnv(ctx context.Context, lookup func(string) (string, bool)) context.Context {
	carrier := propagation.MapCarrier{}
	for _, key := range otel.GetTextMapPropagator().Fields() {
		if v, ok := lookup(strings.ToUpper(key)); ok {
			carrier[key] = v
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
