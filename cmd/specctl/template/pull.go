package template

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

// PullOptions captures CLI arguments.
type PullOptions struct {
	Name   string
	Out    string
	Global options.Global
}

// NewPullCommand constructs the `specctl template pull` command.
func NewPullCommand() *cobra.Command {
	opts := PullOptions{}

	cmd := &cobra.Command{
		Use:   "pull NAME",
		Short: "Print or write the stored specification NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Name = args[0]
			opts.Global = options.FromCommand(cmd)
			return runPull(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the template to this file instead of stdout")
	return cmd
}

// RunPullForTest executes the pull flow with explicit dependencies (used in tests).
func RunPullForTest(cmd *cobra.Command, opts PullOptions, deps Deps) error {
	return runPull(cmd, opts, deps)
}

func runPull(cmd *cobra.Command, opts PullOptions, deps Deps) error {
	if err := templates.ValidateName(opts.Name); err != nil {
		return err
	}
	deps = deps.withDefaults()
	store, err := deps.OpenStore(opts.Global)
	if err != nil {
		return err
	}

	t, err := store.Load(workflow.Context(cmd), opts.Name)
	if err != nil {
		return err
	}
	if opts.Out != "" {
		if err := deps.WriteFile(opts.Out, t.Source, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.Out, err)
		}
		return nil
	}
	if _, err := cmd.OutOrStdout().Write(t.Source); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
