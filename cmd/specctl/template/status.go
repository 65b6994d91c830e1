package template

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

// StatusOptions captures CLI arguments.
type StatusOptions struct {
	Name     string
	StateDir string
	Output   string
}

// NewStatusCommand constructs the `specctl template status` command.
func NewStatusCommand() *cobra.Command {
	opts := StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show the last reconciliation recorded for NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Name = args[0]
			opts.Output = options.FromCommand(cmd).Output
			return runStatus(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "Directory holding reconciliation records")
	return cmd
}

// RunStatusForTest executes the status flow with explicit dependencies (used in tests).
func RunStatusForTest(cmd *cobra.Command, opts StatusOptions, deps Deps) error {
	return runStatus(cmd, opts, deps)
}

func runStatus(cmd *cobra.Command, opts StatusOptions, deps Deps) error {
	if err := templates.ValidateName(opts.Name); err != nil {
		return err
	}
	format, err := options.ResolveOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	deps = deps.withDefaults()

	record, err := deps.StateManager.Read(pkgstate.Overrides{Template: opts.Name, StateDirectory: opts.StateDir})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == options.OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Template:\t%s\n", record.Template)
	fmt.Fprintf(tw, "Last action:\t%s\n", record.LastAction)
	fmt.Fprintf(tw, "Timestamp:\t%s\n", record.Timestamp)
	if record.WorkflowID != "" {
		fmt.Fprintf(tw, "Workflow:\t%s\n", record.WorkflowID)
	}
	fmt.Fprintf(tw, "Merged digest:\t%s\n", record.MergedDigest)
	fmt.Fprintf(tw, "Resources:\t%s\n", counts(record.Resources))
	fmt.Fprintf(tw, "Attributes:\t%s\n", counts(record.Attributes))
	fmt.Fprintf(tw, "Comments carried:\t%d\n", record.CarriedComments)
	return tw.Flush()
}

func counts(c pkgstate.Counts) string {
	return fmt.Sprintf("%d added, %d removed, %d updated, %d unchanged", c.Added, c.Removed, c.Updated, c.Unchanged)
}
