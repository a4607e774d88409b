// Package telemetry wires the process-wide OpenTelemetry tracer and meter
// providers. The request pipeline uses the resulting global tracer to span
// each inspection; exporters are stdout-based until an OTLP collector
// endpoint is worth adding.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops every registered provider.
type ShutdownFunc func(ctx context.Context) error

// Init installs a tracer provider and a meter provider as the process
// globals, tagged with serviceName/serviceVersion. Both currently export to
// stdout; callers that don't want trace/metric noise can discard it by
// passing enabled=false.
func Init(serviceName, serviceVersion string, enabled bool) (ShutdownFunc, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}
