package spec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	internalstate "github.com/RigiResearch/middleware-sub001/internal/state"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	specmodel "github.com/RigiResearch/middleware-sub001/pkg/spec"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

// StateWriter persists reconciliation records.
type StateWriter interface {
	Write(pkgstate.Record, pkgstate.Overrides) (string, error)
}

// Deps configures file access and telemetry of the spec commands.
type Deps struct {
	ReadFile     func(string) ([]byte, error)
	WriteFile    func(string, []byte, os.FileMode) error
	Telemetry    workflow.Factories
	StateManager StateWriter
}

var defaultDeps = Deps{
	ReadFile:     os.ReadFile,
	WriteFile:    os.WriteFile,
	StateManager: pkgstate.NewManager(internalstate.NewResolver()),
}

var (
	errPreviousRequired = errors.New("--previous is required")
	errCurrentRequired  = errors.New("--current is required")
	errNotFormatted     = errors.New("files are not in canonical format")
)

// ErrPreviousRequired exposes the sentinel.
func ErrPreviousRequired() error { return errPreviousRequired }

// ErrCurrentRequired exposes the sentinel.
func ErrCurrentRequired() error { return errCurrentRequired }

// ErrNotFormatted exposes the sentinel returned by fmt --check.
func ErrNotFormatted() error { return errNotFormatted }

// NewSpecCommand constructs the `specctl spec` parent command.
func NewSpecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Merge, plan, format and validate specification files",
	}

	cmd.AddCommand(NewMergeCommand())
	cmd.AddCommand(NewPlanCommand())
	cmd.AddCommand(NewFmtCommand())
	cmd.AddCommand(NewValidateCommand())
	return cmd
}

func (d Deps) withDefaults() Deps {
	if d.ReadFile == nil {
		d.ReadFile = os.ReadFile
	}
	if d.WriteFile == nil {
		d.WriteFile = os.WriteFile
	}
	if d.StateManager == nil {
		d.StateManager = defaultDeps.StateManager
	}
	return d
}

type document struct {
	path   string
	source []byte
	spec   *specmodel.Specification
}

func readDocument(deps Deps, path string) (document, error) {
	src, err := deps.ReadFile(path)
	if err != nil {
		return document{}, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := notation.Parse(src, path)
	if err != nil {
		return document{}, err
	}
	return document{path: path, source: src, spec: s}, nil
}

// parsePair reads previous and current inside one parse phase.
func parsePair(ctx context.Context, s *workflow.Session, deps Deps, previous, current string) (document, document, error) {
	var prev, cur document
	err := s.Phase(ctx, telemetry.PhaseParse, map[string]string{"previous": previous, "current": current}, func(context.Context) error {
		var err error
		if prev, err = readDocument(deps, previous); err != nil {
			return err
		}
		cur, err = readDocument(deps, current)
		return err
	})
	return prev, cur, err
}

// templateName derives a state file name from a document path.
func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
