// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ErrUnknownExporter is returned for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config controls tracing.
type Config struct {
	ServiceName string
	// Exporter is "none" (the default) or "stdout".
	Exporter string
	// Output receives stdout spans; defaults to os.Stdout.
	Output io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs a tracer provider for cfg and returns its shutdown function.
// With the none exporter the global no-op provider is left in place.
func Init(cfg Config) (ShutdownFunc, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	if cfg.Exporter != ExporterStdout {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
