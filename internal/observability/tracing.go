// Package observability wires OpenTelemetry tracing for the diagnostic
// endpoint.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/webmondiag/webmondiag/internal/config"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "webmondiag"

// InitTracer installs a global tracer provider exporting spans as JSON to
// cfg.File, or to stdout when no file is set. With tracing disabled it
// installs nothing. The returned function flushes and shuts down.
func InitTracer(cfg config.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var out io.Writer = os.Stdout
	var file *os.File
	if cfg.File != "" {
		if err := config.EnsureDir(cfg.File); err != nil {
			return nil, fmt.Errorf("create trace directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		out, file = f, f
	}

	tp, err := newProvider(out)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			file.Close()
		}
		return err
	}, nil
}

func newProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			"",
			attribute.String("service.name", ServiceName),
		)),
	), nil
}
