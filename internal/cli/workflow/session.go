// Package workflow ties a command run to its structured log, phase events,
// spans and change metrics.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	"github.com/RigiResearch/middleware-sub001/internal/cli/logging"
	"github.com/RigiResearch/middleware-sub001/internal/cli/report"
	internaltelemetry "github.com/RigiResearch/middleware-sub001/internal/telemetry"
	"github.com/RigiResearch/middleware-sub001/pkg/coordination"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	"github.com/RigiResearch/middleware-sub001/pkg/spec"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

const envPrefix = "SPECCTL_"

// Factories builds the telemetry of a session. Zero fields use the defaults.
type Factories struct {
	Emitter     func(io.Writer) (*telemetry.Emitter, error)
	Instruments func() (*internaltelemetry.Instruments, error)
}

// Session is one command run.
type Session struct {
	Step     string
	Metadata map[string]string

	emitter     *telemetry.Emitter
	logger      telemetry.StructuredLogger
	instruments *internaltelemetry.Instruments
}

// Start opens a session for cmd. Logs and phase events go to cmd's error
// stream so stdout stays reserved for documents and reports.
func Start(cmd *cobra.Command, step string, metadata map[string]string, f Factories) (*Session, error) {
	newEmitter := f.Emitter
	if newEmitter == nil {
		newEmitter = telemetry.NewEmitter
	}
	newInstruments := f.Instruments
	if newInstruments == nil {
		newInstruments = internaltelemetry.NewInstruments
	}

	tel, err := newEmitter(cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("initialize structured logging: %w", err)
	}
	logger := tel.StructuredLogger()
	if logger == nil {
		return nil, fmt.Errorf("structured logger unavailable")
	}
	instruments, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("initialize instruments: %w", err)
	}

	s := &Session{
		Step:        step,
		Metadata:    cloneMetadata(metadata),
		emitter:     tel,
		logger:      logger,
		instruments: instruments,
	}
	declarative.EmitTelemetry(logger, cmd)
	s.Metadata["command"] = logging.SanitizeCommand(os.Args)
	for key, value := range logging.SanitizeEnv(toolEnv()) {
		s.Metadata["env."+key] = value
	}
	logWorkflowStart(logger, step, s.Metadata)
	return s, nil
}

// Logger returns the structured logger of the session.
func (s *Session) Logger() telemetry.StructuredLogger {
	return s.logger
}

// WorkflowID returns the identifier shared by all entries of the session.
func (s *Session) WorkflowID() string {
	return s.emitter.WorkflowID()
}

// Phase runs fn inside a span and between start and completion events.
func (s *Session) Phase(ctx context.Context, phase telemetry.Phase, metadata map[string]string, fn func(context.Context) error) error {
	attrs := []attribute.KeyValue{attribute.String("specctl.step", s.Step)}
	for k, v := range metadata {
		attrs = append(attrs, attribute.String("specctl."+k, v))
	}
	ctx, span := s.instruments.Start(ctx, "specctl."+string(phase), attrs...)
	defer span.End()

	err := s.emitter.EmitPhase(phase, metadata, func() error { return fn(ctx) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Record counts and logs the changes of a merge.
func (s *Session) Record(ctx context.Context, template string, merged *spec.Specification, r *coordination.Report) {
	s.instruments.RecordReport(ctx, template, r)
	report.Log(s.logger, template, merged, r)
}

// Merge runs the merge and print phases and returns the printed document.
func (s *Session) Merge(ctx context.Context, template string, previous, current *spec.Specification) ([]byte, *coordination.Report, error) {
	var (
		merged *spec.Specification
		r      *coordination.Report
		out    []byte
	)
	err := s.Phase(ctx, telemetry.PhaseMerge, map[string]string{"template": template}, func(ctx context.Context) error {
		merged, r = coordination.MergeWithReport(previous, current)
		s.Record(ctx, template, merged, r)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	err = s.Phase(ctx, telemetry.PhasePrint, map[string]string{"template": template}, func(context.Context) error {
		var err error
		out, err = notation.Print(merged)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, r, nil
}

// Context returns the context of cmd, or the background context.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Finish logs the outcome of the session and returns err unchanged.
func (s *Session) Finish(err error) error {
	if err != nil {
		logWorkflowFailure(s.logger, s.Step, s.Metadata, err)
		return err
	}
	logWorkflowSuccess(s.logger, s.Step, s.Metadata)
	return nil
}

// Store logs a template store operation.
func (s *Session) Store(message, template string, metadata map[string]string) {
	_ = s.logger.Emit(telemetry.Entry{
		Category: telemetry.CategoryStore,
		Message:  message,
		Severity: telemetry.SeverityInfo,
		Step:     s.Step,
		Template: template,
		Metadata: cloneMetadata(metadata),
	})
}

func logWorkflowEntry(logger telemetry.StructuredLogger, step, message string, severity telemetry.Severity, metadata map[string]string, err error) {
	if logger == nil {
		return
	}
	_ = logger.Emit(telemetry.Entry{
		Category: telemetry.CategoryWorkflow,
		Message:  message,
		Severity: severity,
		Step:     step,
		Metadata: cloneMetadata(metadata),
		Error:    err,
	})
}

func logWorkflowStart(logger telemetry.StructuredLogger, step string, metadata map[string]string) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow started", step), telemetry.SeverityInfo, metadata, nil)
}

func logWorkflowSuccess(logger telemetry.StructuredLogger, step string, metadata map[string]string) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow completed", step), telemetry.SeverityInfo, metadata, nil)
}

func logWorkflowFailure(logger telemetry.StructuredLogger, step string, metadata map[string]string, err error) {
	logWorkflowEntry(logger, step, fmt.Sprintf("%s workflow failed", step), telemetry.SeverityError, metadata, err)
}

// toolEnv returns the SPECCTL_* variables of the process environment.
func toolEnv() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, envPrefix) {
			env[key] = value
		}
	}
	return env
}

func cloneMetadata(src map[string]string) map[string]string {
	out := make(map[string]string, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}
