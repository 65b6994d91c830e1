package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/RigiResearch/middleware-sub001/pkg/coordination"
)

const instrumentationName = "specctl"

// ChangesMetric counts reconciliation changes by level and kind.
const ChangesMetric = "specctl.merge.changes"

// Instruments bundles the tracer and meters used by commands. The zero value
// is not usable; call NewInstruments after InitProvider.
type Instruments struct {
	tracer  trace.Tracer
	changes metric.Int64Counter
}

// NewInstruments resolves instruments from the global providers.
func NewInstruments() (*Instruments, error) {
	changes, err := otel.Meter(instrumentationName).Int64Counter(
		ChangesMetric,
		metric.WithDescription("Resource and attribute changes applied by merges"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}
	return &Instruments{tracer: otel.Tracer(instrumentationName), changes: changes}, nil
}

// Start opens a span named after the command step.
func (i *Instruments) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordReport adds every non-unchanged entry of report to the changes counter.
func (i *Instruments) RecordReport(ctx context.Context, template string, report *coordination.Report) {
	if report == nil {
		return
	}
	for _, change := range report.Changes {
		if change.Kind == coordination.ChangeUnchanged {
			continue
		}
		i.changes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("template", template),
			attribute.String("level", string(change.Level)),
			attribute.String("kind", string(change.Kind)),
		))
	}
}
