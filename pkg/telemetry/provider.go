package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ProviderConfig configures the global tracer provider. Enabled false (the
// zero value) installs a no-op provider, matching
// hector/pkg/observability.InitGlobalTracer's disabled path.
type ProviderConfig struct {
	Enabled      bool
	ServiceName  string
	SamplingRate float64

	// Writer receives span output when Enabled; defaults to os.Stdout's
	// caller-supplied writer, since this kernel ships only the
	// stdouttrace exporter for local/dev use, not a full OTLP collector
	// integration.
	Writer io.Writer
}

// InitGlobalProvider installs a global TracerProvider per cfg and returns
// it so the caller can Shutdown it on exit. Disabled configs return a
// no-op provider whose Shutdown is a no-op.
func InitGlobalProvider(ctx context.Context, cfg ProviderConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
