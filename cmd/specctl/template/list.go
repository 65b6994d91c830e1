package template

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
)

// NewListCommand constructs the `specctl template list` command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runList(cmd, options.FromCommand(cmd), defaultDeps)
		},
	}
}

// RunListForTest executes the list flow with explicit dependencies (used in tests).
func RunListForTest(cmd *cobra.Command, g options.Global, deps Deps) error {
	return runList(cmd, g, deps)
}

func runList(cmd *cobra.Command, g options.Global, deps Deps) error {
	format, err := options.ResolveOutput(g.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	deps = deps.withDefaults()
	store, err := deps.OpenStore(g)
	if err != nil {
		return err
	}

	names, err := store.List(workflow.Context(cmd))
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}

	out := cmd.OutOrStdout()
	if format == options.OutputJSON {
		return json.NewEncoder(out).Encode(names)
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
