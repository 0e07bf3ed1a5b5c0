// Package telemetry configures the otel TracerProvider the orchestrator
// uses to span per-language sessions and per-file extraction. The provider
// has no exporter attached: it creates and ends spans but never ships them
// anywhere.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer name used for every span the orchestrator creates.
const tracerName = "docweave/orchestrator"

// Setup builds and registers a TracerProvider for the duration of one
// process. The returned shutdown function must be called to release
// resources.
func Setup(ctx context.Context, serviceVersion string) (trace.Tracer, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("docweave"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(tracerName), tp.Shutdown, nil
}
