package spec

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

const stepMerge = "merge"

// MergeOptions captures CLI flag values.
type MergeOptions struct {
	Previous string
	Current  string
	Out      string
	StateDir string
	Name     string
}

// NewMergeCommand constructs the `specctl spec merge` command.
func NewMergeCommand() *cobra.Command {
	opts := MergeOptions{}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a curated specification with one derived from live state",
		Long: "Merge takes resources and values from --current and carries comments from --previous\n" +
			"onto every resource and attribute that survives without a comment of its own.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runMerge(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().StringVar(&opts.Previous, "previous", "", "Curated specification carrying the comments")
	cmd.Flags().StringVar(&opts.Current, "current", "", "Specification derived from live state")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the merged specification to this file instead of stdout")
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "Record the reconciliation outcome under this directory")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Name of the state record (defaults to the current file name)")
	declarative.Mark(cmd)

	return cmd
}

// RunMergeForTest executes the merge flow with explicit dependencies (used in tests).
func RunMergeForTest(cmd *cobra.Command, opts MergeOptions, deps Deps) error {
	return runMerge(cmd, opts, deps)
}

func runMerge(cmd *cobra.Command, opts MergeOptions, deps Deps) (err error) {
	if strings.TrimSpace(opts.Previous) == "" {
		return errPreviousRequired
	}
	if strings.TrimSpace(opts.Current) == "" {
		return errCurrentRequired
	}
	deps = deps.withDefaults()

	s, err := workflow.Start(cmd, stepMerge, map[string]string{
		"previous": opts.Previous,
		"current":  opts.Current,
	}, deps.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = s.Finish(err) }()

	ctx := workflow.Context(cmd)
	prev, cur, err := parsePair(ctx, s, deps, opts.Previous, opts.Current)
	if err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = templateName(opts.Current)
	}
	out, report, err := s.Merge(ctx, name, prev.spec, cur.spec)
	if err != nil {
		return err
	}

	if opts.Out == "" {
		if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return fmt.Errorf("write merged specification: %w", err)
		}
	}

	return s.Phase(ctx, telemetry.PhasePersist, map[string]string{"out": opts.Out}, func(context.Context) error {
		if opts.Out != "" {
			if err := deps.WriteFile(opts.Out, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.Out, err)
			}
		}
		if opts.StateDir == "" {
			return nil
		}
		record := pkgstate.Record{
			Template:       name,
			PreviousDigest: templates.Digest(prev.source),
			CurrentDigest:  templates.Digest(cur.source),
			MergedDigest:   templates.Digest(out),
			LastAction:     stepMerge,
			WorkflowID:     s.WorkflowID(),
		}
		record.Summarize(report)
		path, err := deps.StateManager.Write(record, pkgstate.Overrides{Template: name, StateDirectory: opts.StateDir})
		if err != nil {
			return err
		}
		s.Metadata["statePath"] = path
		return nil
	})
}
