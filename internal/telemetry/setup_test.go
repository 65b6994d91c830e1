package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type stubSpanExporter struct{ shutdowns int }

func (stubSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (s *stubSpanExporter) Shutdown(context.Context) error {
	s.shutdowns++
	return nil
}

type stubMetricExporter struct {
	shutdownErr error
	shutdowns   int
}

func (stubMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (stubMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (stubMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }

func (stubMetricExporter) ForceFlush(context.Context) error { return nil }

func (s *stubMetricExporter) Shutdown(context.Context) error {
	s.shutdowns++
	return s.shutdownErr
}

// withFactory swaps the exporter registered under name for the test.
func withFactory(t *testing.T, name string, f exporterFactory) {
	t.Helper()
	original, had := exporterFactories[name]
	exporterFactories[name] = f
	t.Cleanup(func() {
		if had {
			exporterFactories[name] = original
		} else {
			delete(exporterFactories, name)
		}
	})
}

func TestInitProviderDisabled(t *testing.T) {
	for _, value := range []string{"", "none", "jaeger"} {
		t.Setenv(ExporterEnv, value)
		shutdown, err := InitProvider(context.Background())
		if err != nil {
			t.Fatalf("%q: init provider: %v", value, err)
		}
		if shutdown == nil {
			t.Fatalf("%q: expected shutdown function", value)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("%q: shutdown: %v", value, err)
		}
	}
}

func TestInitProviderStdout(t *testing.T) {
	t.Setenv(ExporterEnv, "stdout")
	shutdown, err := InitProvider(context.Background())
	if err != nil {
		t.Fatalf("init provider: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitProviderNormalizesExporterName(t *testing.T) {
	spans := &stubSpanExporter{}
	withFactory(t, "otlp-grpc", func(context.Context) (exporterSet, error) {
		return exporterSet{trace: spans}, nil
	})

	t.Setenv(ExporterEnv, " OTLP-GRPC ")
	shutdown, err := InitProvider(context.Background())
	if err != nil {
		t.Fatalf("init provider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if spans.shutdowns != 1 {
		t.Fatalf("expected span exporter shutdown, got %d", spans.shutdowns)
	}
}

func TestInitProviderFactoryError(t *testing.T) {
	boom := errors.New("collector unreachable")
	withFactory(t, "otlp-http", func(context.Context) (exporterSet, error) {
		return exporterSet{}, boom
	})

	t.Setenv(ExporterEnv, "otlp-http")
	if _, err := InitProvider(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestInstallProviderShutsDownEveryExporter(t *testing.T) {
	spans := &stubSpanExporter{}
	boom := errors.New("flush failed")
	metrics := &stubMetricExporter{shutdownErr: boom}

	shutdown, err := installProvider(context.Background(), exporterSet{trace: spans, metric: metrics})
	if err != nil {
		t.Fatalf("install provider: %v", err)
	}
	if err := shutdown(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected metric shutdown error, got %v", err)
	}
	if spans.shutdowns != 1 || metrics.shutdowns != 1 {
		t.Fatalf("expected both exporters to shut down, got spans=%d metrics=%d", spans.shutdowns, metrics.shutdowns)
	}
}

func TestHashInstanceIDUsesEnv(t *testing.T) {
	t.Setenv(InstanceEnv, "ci-runner-7")
	want := sha256.Sum256([]byte("ci-runner-7"))
	if got := hashInstanceID(); got != hex.EncodeToString(want[:]) {
		t.Fatalf("expected hash %s, got %s", hex.EncodeToString(want[:]), got)
	}
}

func TestHashInstanceIDFallsBackToHostname(t *testing.T) {
	t.Setenv(InstanceEnv, "")
	if got := hashInstanceID(); len(got) != 64 {
		t.Fatalf("expected sha256 hex length, got %d", len(got))
	}
}
