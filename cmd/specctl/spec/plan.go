package spec

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/report"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/coordination"
	specmodel "github.com/RigiResearch/middleware-sub001/pkg/spec"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

const stepPlan = "plan"

// PlanOptions captures CLI flag values.
type PlanOptions struct {
	Previous string
	Current  string
	Output   string
}

// NewPlanCommand constructs the `specctl spec plan` command.
func NewPlanCommand() *cobra.Command {
	opts := PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Report what a merge would change without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Output = options.FromCommand(cmd).Output
			return runPlan(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().StringVar(&opts.Previous, "previous", "", "Curated specification carrying the comments")
	cmd.Flags().StringVar(&opts.Current, "current", "", "Specification derived from live state")
	declarative.Mark(cmd)

	return cmd
}

// RunPlanForTest executes the plan flow with explicit dependencies (used in tests).
func RunPlanForTest(cmd *cobra.Command, opts PlanOptions, deps Deps) error {
	return runPlan(cmd, opts, deps)
}

func runPlan(cmd *cobra.Command, opts PlanOptions, deps Deps) (err error) {
	if strings.TrimSpace(opts.Previous) == "" {
		return errPreviousRequired
	}
	if strings.TrimSpace(opts.Current) == "" {
		return errCurrentRequired
	}
	format, err := options.ResolveOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	deps = deps.withDefaults()

	s, err := workflow.Start(cmd, stepPlan, map[string]string{
		"previous": opts.Previous,
		"current":  opts.Current,
		"output":   format,
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

	name := templateName(opts.Current)
	var r *coordination.Report
	err = s.Phase(ctx, telemetry.PhaseMerge, map[string]string{"template": name}, func(ctx context.Context) error {
		var merged *specmodel.Specification
		merged, r = coordination.MergeWithReport(prev.spec, cur.spec)
		s.Record(ctx, name, merged, r)
		return nil
	})
	if err != nil {
		return err
	}
	if !r.HasChanges() {
		s.Metadata["changes"] = "none"
	}
	return report.Write(cmd.OutOrStdout(), name, r, format)
}
