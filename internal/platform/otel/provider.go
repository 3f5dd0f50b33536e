// Package otel installs the OpenTelemetry tracer provider used by the
// billing API and the reminders worker.
package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects where spans go. Tracing stays off until Endpoint is set.
type Config struct {
	Endpoint    string  `env:"TRADEBOOK_OTEL_ENDPOINT"`
	Disabled    bool    `env:"TRADEBOOK_OTEL_DISABLED"`
	SampleRatio float64 `env:"TRADEBOOK_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Enabled reports whether Setup will export spans.
func (c Config) Enabled() bool {
	return !c.Disabled && strings.TrimSpace(c.Endpoint) != ""
}

func (c Config) sampler() (sdktrace.Sampler, error) {
	switch r := c.SampleRatio; {
	case r < 0 || r > 1:
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", r)
	case r == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(r)), nil
	}
}

// Shutdown flushes and stops the provider installed by Setup.
type Shutdown func(context.Context) error

// Setup registers a global tracer provider for service "tradebook-<service>"
// exporting over OTLP/HTTP, plus W3C trace-context and baggage propagation.
// When cfg is not Enabled only the propagator is installed.
func Setup(ctx context.Context, service string, cfg Config) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}
	if strings.TrimSpace(service) == "" {
		return nil, errors.New("otel: service name is required")
	}
	sampler, err := cfg.sampler()
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("tradebook-"+service)))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
