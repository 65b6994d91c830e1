package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase represents a step of a reconciliation run.
type Phase string

const (
	PhaseParse   Phase = "parse"
	PhaseMerge   Phase = "merge"
	PhasePrint   Phase = "print"
	PhasePersist Phase = "persist"
)

// Event captures structured telemetry emitted by the CLI.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	WorkflowID string            `json:"workflowId"`
	Phase      Phase             `json:"phase"`
	Outcome    string            `json:"outcome"`
	Duration   time.Duration     `json:"duration,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Emitter writes phase events and owns the structured logger of a workflow.
// Both share the same writer and workflow identifier.
type Emitter struct {
	mu         sync.Mutex
	encoder    *json.Encoder
	logger     *Logger
	workflowID string
}

// NewEmitter constructs an emitter writing JSON lines to w under a fresh
// workflow identifier.
func NewEmitter(w io.Writer) (*Emitter, error) {
	return NewEmitterWithID(w, uuid.NewString())
}

// NewEmitterWithID constructs an emitter for an existing workflow.
func NewEmitterWithID(w io.Writer, workflowID string) (*Emitter, error) {
	if w == nil {
		return nil, errors.New("emitter writer is required")
	}
	logger, err := NewLogger(w, workflowID)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Emitter{encoder: enc, logger: logger, workflowID: logger.WorkflowID()}, nil
}

// StructuredLogger returns the logger bound to the emitter's workflow.
func (e *Emitter) StructuredLogger() StructuredLogger {
	if e == nil || e.logger == nil {
		return nil
	}
	return e.logger
}

// WorkflowID returns the workflow identifier.
func (e *Emitter) WorkflowID() string {
	if e == nil {
		return ""
	}
	return e.workflowID
}

// Emit writes an event to the underlying writer.
func (e *Emitter) Emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.WorkflowID == "" {
		ev.WorkflowID = e.workflowID
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]string{}
	}
	return e.encoder.Encode(ev)
}

// EmitPhase publishes start and completion events while executing fn.
func (e *Emitter) EmitPhase(phase Phase, metadata map[string]string, fn func() error) error {
	start := time.Now()
	if err := e.Emit(Event{Phase: phase, Outcome: "start", Metadata: metadata}); err != nil {
		return fmt.Errorf("emit start event: %w", err)
	}

	err := fn()
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	emitErr := e.Emit(Event{Phase: phase, Outcome: outcome, Duration: time.Since(start), Metadata: metadata})
	if emitErr != nil {
		return fmt.Errorf("emit completion event: %w", emitErr)
	}

	return err
}
