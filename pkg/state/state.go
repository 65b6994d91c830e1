// Package state persists the outcome of the last reconciliation of a template.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RigiResearch/middleware-sub001/pkg/coordination"
)

// Counts tallies changes of one level.
type Counts struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Record stores the result of the last merge applied to a template.
type Record struct {
	Template        string `json:"template"`
	PreviousDigest  string `json:"previousDigest,omitempty"`
	CurrentDigest   string `json:"currentDigest"`
	MergedDigest    string `json:"mergedDigest"`
	Resources       Counts `json:"resources"`
	Attributes      Counts `json:"attributes"`
	CarriedComments int    `json:"carriedComments"`
	LastAction      string `json:"lastAction"`
	WorkflowID      string `json:"workflowId,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// Summarize fills the change counters of r from a merge report.
func (r *Record) Summarize(report *coordination.Report) {
	r.Resources = countsAt(report, coordination.LevelResource)
	r.Attributes = countsAt(report, coordination.LevelAttribute)
	r.CarriedComments = report.CarriedComments()
}

func countsAt(report *coordination.Report, level coordination.Level) Counts {
	c := report.Counts(level)
	return Counts{
		Added:     c[coordination.ChangeAdded],
		Removed:   c[coordination.ChangeRemoved],
		Updated:   c[coordination.ChangeUpdated],
		Unchanged: c[coordination.ChangeUnchanged],
	}
}

// Overrides defines user-supplied preferences for the state file location.
type Overrides struct {
	Template       string
	StateDirectory string
	StateFileName  string
	StateFilePath  string
}

// PathResolver resolves the effective filesystem path for the state file.
type PathResolver interface {
	Resolve(Overrides) (string, error)
}

// Manager coordinates persistence of reconciliation records.
type Manager struct {
	resolver PathResolver
	dirPerm  os.FileMode
	filePerm os.FileMode
	now      func() time.Time
}

var (
	errPathResolverMissing = errors.New("state path resolver not configured")
	errEmptyStatePath      = errors.New("resolved state file path empty")
	errWriteFailed         = errors.New("state file could not be written")
	errNotFound            = errors.New("no reconciliation state recorded")
)

// NewManager constructs a Manager with the provided resolver.
func NewManager(resolver PathResolver) *Manager {
	return &Manager{
		resolver: resolver,
		dirPerm:  0o700,
		filePerm: 0o600,
		now:      time.Now,
	}
}

// ErrWriteFailed exposes the write failure sentinel.
func ErrWriteFailed() error { return errWriteFailed }

// ErrNotFound exposes the missing state sentinel.
func ErrNotFound() error { return errNotFound }

func (m *Manager) resolvePath(overrides Overrides) (string, error) {
	if m == nil || m.resolver == nil {
		return "", errPathResolverMissing
	}
	path, err := m.resolver.Resolve(overrides)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", errEmptyStatePath
	}
	return path, nil
}

// Write persists the record to the resolved state path, replacing any
// previous record atomically.
func (m *Manager) Write(record Record, overrides Overrides) (string, error) {
	if overrides.Template == "" {
		overrides.Template = record.Template
	}
	path, err := m.resolvePath(overrides)
	if err != nil {
		return "", err
	}

	if record.Timestamp == "" {
		record.Timestamp = m.now().UTC().Format(time.RFC3339)
	}

	dir := filepath.Dir(path)
	if _, statErr := os.Stat(dir); statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", errWriteFailed, statErr)
		}
		if err := os.MkdirAll(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", errWriteFailed, err)
		}
		// MkdirAll is subject to the umask.
		if err := os.Chmod(dir, m.dirPerm); err != nil {
			return "", fmt.Errorf("%w: %w", errWriteFailed, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(m.filePerm); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %w", errWriteFailed, err)
	}
	return path, nil
}

// Read loads the last record stored at the resolved path.
func (m *Manager) Read(overrides Overrides) (Record, error) {
	path, err := m.resolvePath(overrides)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", errNotFound, path)
		}
		return Record{}, fmt.Errorf("read state %s: %w", path, err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode state %s: %w", path, err)
	}
	return record, nil
}
