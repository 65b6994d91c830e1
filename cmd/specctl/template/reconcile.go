package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/report"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	specmodel "github.com/RigiResearch/middleware-sub001/pkg/spec"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

const stepReconcile = "reconcile"

// ReconcileOptions captures CLI flag values.
type ReconcileOptions struct {
	Name     string
	Current  string
	Out      string
	StateDir string
	DryRun   bool
	Global   options.Global
}

// NewReconcileCommand constructs the `specctl template reconcile` command.
func NewReconcileCommand() *cobra.Command {
	opts := ReconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile NAME",
		Short: "Merge the stored template NAME with a specification derived from live state",
		Long: "Reconcile loads template NAME as the previous specification, merges --current into it,\n" +
			"stores the result as the new revision of NAME and records the outcome.\n" +
			"A template that does not exist yet is treated as empty.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Name = args[0]
			opts.Global = options.FromCommand(cmd)
			return runReconcile(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().StringVar(&opts.Current, "current", "", "Specification derived from live state")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Also write the merged specification to this file")
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "Directory holding reconciliation records")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report the changes without storing the result")
	declarative.Mark(cmd)

	return cmd
}

// RunReconcileForTest executes the reconcile flow with explicit dependencies (used in tests).
func RunReconcileForTest(cmd *cobra.Command, opts ReconcileOptions, deps Deps) error {
	return runReconcile(cmd, opts, deps)
}

func runReconcile(cmd *cobra.Command, opts ReconcileOptions, deps Deps) (err error) {
	if err := templates.ValidateName(opts.Name); err != nil {
		return err
	}
	if strings.TrimSpace(opts.Current) == "" {
		return errCurrentRequired
	}
	format, err := options.ResolveOutput(opts.Global.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	deps = deps.withDefaults()
	store, err := deps.OpenStore(opts.Global)
	if err != nil {
		return err
	}

	s, err := workflow.Start(cmd, stepReconcile, map[string]string{
		"template": opts.Name,
		"current":  opts.Current,
		"dryRun":   fmt.Sprint(opts.DryRun),
	}, deps.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = s.Finish(err) }()

	ctx := workflow.Context(cmd)
	var (
		previous       *specmodel.Specification
		previousSource []byte
		current        *specmodel.Specification
		currentSource  []byte
	)
	err = s.Phase(ctx, telemetry.PhaseParse, map[string]string{"template": opts.Name, "current": opts.Current}, func(ctx context.Context) error {
		var err error
		previous, previousSource, err = loadPrevious(ctx, s, store, opts.Name)
		if err != nil {
			return err
		}
		currentSource, current, err = parseFile(deps, opts.Current)
		return err
	})
	if err != nil {
		return err
	}

	merged, r, err := s.Merge(ctx, opts.Name, previous, current)
	if err != nil {
		return err
	}

	err = s.Phase(ctx, telemetry.PhasePersist, map[string]string{"template": opts.Name, "out": opts.Out}, func(ctx context.Context) error {
		if opts.Out != "" {
			if err := deps.WriteFile(opts.Out, merged, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.Out, err)
			}
		}
		if opts.DryRun {
			return nil
		}
		if err := store.Save(ctx, templates.Template{Name: opts.Name, Source: merged, UpdatedBy: deps.User()}); err != nil {
			return err
		}
		s.Store("template saved", opts.Name, map[string]string{"digest": templates.Digest(merged)})

		record := pkgstate.Record{
			Template:      opts.Name,
			CurrentDigest: templates.Digest(currentSource),
			MergedDigest:  templates.Digest(merged),
			LastAction:    stepReconcile,
			WorkflowID:    s.WorkflowID(),
		}
		if previousSource != nil {
			record.PreviousDigest = templates.Digest(previousSource)
		}
		record.Summarize(r)
		path, err := deps.StateManager.Write(record, pkgstate.Overrides{Template: opts.Name, StateDirectory: opts.StateDir})
		if err != nil {
			return err
		}
		s.Metadata["statePath"] = path
		return nil
	})
	if err != nil {
		return err
	}

	return report.Write(cmd.OutOrStdout(), opts.Name, r, format)
}

// loadPrevious returns the stored template, or an empty specification when
// none has been pushed yet.
func loadPrevious(ctx context.Context, s *workflow.Session, store templates.Store, name string) (*specmodel.Specification, []byte, error) {
	t, err := store.Load(ctx, name)
	if errors.Is(err, templates.ErrTemplateNotFound()) {
		s.Store("template not found, starting from an empty specification", name, nil)
		empty, err := specmodel.New(nil, nil)
		return empty, nil, err
	}
	if err != nil {
		return nil, nil, err
	}
	previous, err := notation.Parse(t.Source, name)
	if err != nil {
		return nil, nil, fmt.Errorf("template %s: %w", name, err)
	}
	return previous, t.Source, nil
}
