// Package template implements the `specctl template` commands, which keep
// curated specifications in a template store and reconcile them against
// specifications derived from live state.
package template

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	internalstate "github.com/RigiResearch/middleware-sub001/internal/state"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	specmodel "github.com/RigiResearch/middleware-sub001/pkg/spec"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

// StateStore reads and writes reconciliation records.
type StateStore interface {
	Write(pkgstate.Record, pkgstate.Overrides) (string, error)
	Read(pkgstate.Overrides) (pkgstate.Record, error)
}

// Deps configures the template commands.
type Deps struct {
	OpenStore    func(options.Global) (templates.Store, error)
	ReadFile     func(string) ([]byte, error)
	WriteFile    func(string, []byte, os.FileMode) error
	Telemetry    workflow.Factories
	StateManager StateStore
	User         func() string
}

var defaultDeps = Deps{
	OpenStore:    options.OpenStore,
	ReadFile:     os.ReadFile,
	WriteFile:    os.WriteFile,
	StateManager: pkgstate.NewManager(internalstate.NewResolver()),
	User:         currentUser,
}

var errCurrentRequired = errors.New("--current is required")

// ErrCurrentRequired exposes the sentinel.
func ErrCurrentRequired() error { return errCurrentRequired }

// NewTemplateCommand constructs the `specctl template` parent command.
func NewTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Store curated specifications and reconcile them with live state",
	}

	cmd.AddCommand(NewPushCommand())
	cmd.AddCommand(NewPullCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewReconcileCommand())
	return cmd
}

func (d Deps) withDefaults() Deps {
	if d.OpenStore == nil {
		d.OpenStore = defaultDeps.OpenStore
	}
	if d.ReadFile == nil {
		d.ReadFile = os.ReadFile
	}
	if d.WriteFile == nil {
		d.WriteFile = os.WriteFile
	}
	if d.StateManager == nil {
		d.StateManager = defaultDeps.StateManager
	}
	if d.User == nil {
		d.User = currentUser
	}
	return d
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func parseFile(deps Deps, path string) ([]byte, *specmodel.Specification, error) {
	src, err := deps.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := notation.Parse(src, path)
	if err != nil {
		return nil, nil, err
	}
	return src, s, nil
}
