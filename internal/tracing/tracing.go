// ABOUTME: OpenTelemetry tracer provider setup with an OTLP/HTTP exporter
// ABOUTME: Without an endpoint the global no-op provider stays in place
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies this process in exported spans
const ServiceName = "finrag"

// Shutdown flushes and stops the provider
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a batching tracer provider exporting to endpoint.
// endpoint may be host:port or a full http(s) URL.
func Setup(ctx context.Context, endpoint, version string) (Shutdown, error) {
	if strings.TrimSpace(endpoint) == "" {
		return noop, nil
	}

	opts, err := exporterOptions(endpoint)
	if err != nil {
		return noop, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, fmt.Errorf("otel exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	if !strings.Contains(endpoint, "://") {
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse OTLP endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("OTLP endpoint %q has no host", endpoint)
	}
	return []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}, nil
}
