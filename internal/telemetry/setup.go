package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// ExporterEnv selects the exporter: none, stdout, otlp-grpc or otlp-http.
	ExporterEnv = "SPECCTL_OTEL_EXPORTER"
	// InstanceEnv overrides the value hashed into service.instance.id.
	InstanceEnv = "SPECCTL_INSTANCE_ID"

	serviceName = "specctl"
)

// ShutdownTimeout bounds the final flush of spans and metrics.
const ShutdownTimeout = 5 * time.Second

// Version is reported as service.version; release builds set it with -ldflags.
var Version = "dev"

// exporterSet holds the exporters of one backend. Metric may be nil.
type exporterSet struct {
	trace  sdktrace.SpanExporter
	metric sdkmetric.Exporter
}

type exporterFactory func(context.Context) (exporterSet, error)

// Stdout exporters write to stderr so they never mix with documents on stdout.
var exporterFactories = map[string]exporterFactory{
	"stdout": func(context.Context) (exporterSet, error) {
		tracer, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return exporterSet{}, fmt.Errorf("stdout trace exporter: %w", err)
		}
		meter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return exporterSet{}, fmt.Errorf("stdout metric exporter: %w", err)
		}
		return exporterSet{trace: tracer, metric: meter}, nil
	},
	"otlp-grpc": func(ctx context.Context) (exporterSet, error) {
		tracer, err := otlptrace.New(ctx, otlptracegrpc.NewClient())
		if err != nil {
			return exporterSet{}, fmt.Errorf("otlp grpc exporter: %w", err)
		}
		return exporterSet{trace: tracer}, nil
	},
	"otlp-http": func(ctx context.Context) (exporterSet, error) {
		tracer, err := otlptrace.New(ctx, otlptracehttp.NewClient())
		if err != nil {
			return exporterSet{}, fmt.Errorf("otlp http exporter: %w", err)
		}
		return exporterSet{trace: tracer}, nil
	},
}

// InitProvider installs global OpenTelemetry providers for the exporter named
// by SPECCTL_OTEL_EXPORTER. Empty, "none" and unknown names leave the no-op
// providers in place.
func InitProvider(ctx context.Context) (func(context.Context) error, error) {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(ExporterEnv)))
	factory, ok := exporterFactories[name]
	if !ok {
		return func(context.Context) error { return nil }, nil
	}
	set, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	return installProvider(ctx, set)
}

func installProvider(ctx context.Context, set exporterSet) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(Version),
			semconv.ServiceInstanceIDKey.String(hashInstanceID()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(set.trace),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	shutdowns := []func(context.Context) error{tp.Shutdown}

	if set.metric != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(set.metric)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}, nil
}

// hashInstanceID identifies the machine without exporting its hostname.
func hashInstanceID() string {
	input := os.Getenv(InstanceEnv)
	if input == "" {
		if host, err := os.Hostname(); err == nil {
			input = host
		}
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
