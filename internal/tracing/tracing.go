// Package tracing wires the OpenTelemetry SDK already consumed passively by
// internal/metrics (getExemplar pulls a trace ID out of context) into an
// actual TracerProvider, so Pusher and Puller can open one span per chunk
// and have its trace ID surface as a Prometheus exemplar.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the span exporter. Exporter is one of "none" (default),
// "stdout", "otlp" or "jaeger"; Endpoint is ignored for "stdout" and "none".
type Config struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Shutdown flushes and stops the configured TracerProvider.
type Shutdown func(context.Context) error

// Init installs a global TracerProvider per cfg and returns its Shutdown.
// Exporter "none" (the default) installs nothing and leaves the global
// provider as it is (otel's no-op provider unless one was set before), so
// span calls elsewhere in the codebase remain free to run unconditionally.
func Init(ctx context.Context, cfg Config, serviceName string) (Shutdown, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := buildExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing: build exporter %s: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// tracer is the package-wide handle chunk-processing code spans from.
var tracer = otel.Tracer("fs2cloud")

// StartChunkSpan opens a span for processing one chunk, tagging it with the
// file UUID and chunk index so exemplars collected via getExemplar(ctx) can
// be traced back to the originating chunk.
func StartChunkSpan(ctx context.Context, op, fileUUID string, idx uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, op,
		trace.WithAttributes(
			attribute.String("fs2cloud.file_uuid", fileUUID),
			attribute.Int64("fs2cloud.chunk_idx", int64(idx)),
		),
	)
}
