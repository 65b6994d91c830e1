package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// StructuredLogger emits structured log entries.
type StructuredLogger interface {
	Emit(Entry) error
}

// Severity represents the log severity level.
type Severity string

const (
	// SeverityInfo captures normal operation messages.
	SeverityInfo Severity = "info"
	// SeverityWarn captures recoverable anomalies.
	SeverityWarn Severity = "warn"
	// SeverityError captures unrecoverable or failure states.
	SeverityError Severity = "error"
)

// Category captures the structured log category.
type Category string

const (
	// CategoryWorkflow marks command-level events.
	CategoryWorkflow Category = "workflow"
	// CategoryMerge marks per-change reconciliation events.
	CategoryMerge Category = "merge"
	// CategoryStore marks template store reads and writes.
	CategoryStore Category = "store"
	// CategoryConfig marks configuration discovery and flag resolution.
	CategoryConfig Category = "config"
	// CategoryDiagnostic marks ancillary diagnostic events.
	CategoryDiagnostic Category = "diagnostic"
)

// Entry describes a structured log entry prior to serialization.
type Entry struct {
	Category Category
	Message  string
	Severity Severity
	Step     string
	Template string
	Path     string
	Metadata map[string]string
	Error    error
}

// Logger emits structured JSON logs.
type Logger struct {
	enc        *json.Encoder
	workflowID string
	now        func() time.Time
	mu         sync.Mutex
}

// NewLogger constructs a logger for a workflow.
func NewLogger(w io.Writer, workflowID string) (*Logger, error) {
	if w == nil {
		return nil, errors.New("logger writer is required")
	}
	trimmed := strings.TrimSpace(workflowID)
	if trimmed == "" {
		return nil, errors.New("workflow ID is required")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Logger{enc: enc, workflowID: trimmed, now: time.Now}, nil
}

// WorkflowID returns the identifier stamped on every entry.
func (l *Logger) WorkflowID() string {
	if l == nil {
		return ""
	}
	return l.workflowID
}

// Emit writes the provided entry to the underlying writer.
func (l *Logger) Emit(entry Entry) error {
	if l == nil {
		return errors.New("logger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	severity := entry.Severity
	if severity == "" {
		severity = SeverityInfo
	}

	metadata := make(map[string]string, len(entry.Metadata)+1)
	for k, v := range entry.Metadata {
		metadata[k] = v
	}
	if entry.Error != nil {
		severity = SeverityError
		metadata["error"] = entry.Error.Error()
	}

	payload := map[string]any{
		"timestamp":  l.now().UTC().Format(time.RFC3339),
		"category":   string(entry.Category),
		"message":    entry.Message,
		"severity":   string(severity),
		"workflowId": l.workflowID,
	}
	if entry.Step != "" {
		payload["step"] = entry.Step
	}
	if entry.Template != "" {
		payload["template"] = entry.Template
	}
	if entry.Path != "" {
		payload["path"] = entry.Path
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}

	return l.enc.Encode(payload)
}
