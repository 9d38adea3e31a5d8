// Package telemetryx sets up OpenTelemetry tracing and provides a span
// helper, falling back to a no-op tracer when telemetry is disabled. The
// gateway and the upstream pool do not record spans through it.
package telemetryx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "toolify-go"

// Settings controls whether and where spans are exported.
type Settings struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Init sets up the global tracer provider per Settings and returns a
// shutdown function to flush pending spans on exit. When disabled, it
// returns a no-op shutdown and GetTracer always returns a no-op tracer.
func Init(ctx context.Context, settings Settings) (shutdown func(context.Context) error, err error) {
	if !settings.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(settings.OTLPEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// GetTracer returns the active tracer, or a no-op tracer when telemetry
// is disabled.
func GetTracer(enabled bool) trace.Tracer {
	if !enabled {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// SpanOptions configures a recorded span.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan runs fn inside a span named opts.Name, recording any
// returned error on the span before propagating it.
func RecordSpan[T any](ctx context.Context, tracer trace.Tracer, opts SpanOptions, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()

	result, err := fn(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, err
	}
	return result, nil
}
