// Package telemetry wires the service into its observability backends:
// OpenTelemetry traces, metrics and log export over OTLP gRPC, Pyroscope
// continuous profiles, and the gorm hooks that feed statement-level data
// into all of them. Every provider degrades to a no-op when disabled, so
// callers never need to guard their instrumentation points.
package telemetry

import (
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const serviceVersion = "1.0.0"

// shutdownGrace bounds how long any provider shutdown may block on a
// final flush to the collector.
const shutdownGrace = 10 * time.Second

// serviceResource describes this process to the collector. Merging over
// resource.Default keeps the SDK-detected attributes (host, runtime).
func serviceResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
}
