package spec

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

const stepValidate = "validate"

// NewValidateCommand constructs the `specctl spec validate` command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check that specification files parse",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runValidate(cmd, args, defaultDeps)
		},
	}
}

// RunValidateForTest executes the validate flow with explicit dependencies (used in tests).
func RunValidateForTest(cmd *cobra.Command, files []string, deps Deps) error {
	return runValidate(cmd, files, deps)
}

// runValidate reports every file and returns the joined parse errors.
func runValidate(cmd *cobra.Command, files []string, deps Deps) (err error) {
	deps = deps.withDefaults()

	s, err := workflow.Start(cmd, stepValidate, map[string]string{"files": fmt.Sprint(len(files))}, deps.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = s.Finish(err) }()

	ctx := workflow.Context(cmd)
	out := cmd.OutOrStdout()
	var errs []error
	for _, path := range files {
		perr := s.Phase(ctx, telemetry.PhaseParse, map[string]string{"file": path}, func(context.Context) error {
			_, err := readDocument(deps, path)
			return err
		})
		if perr != nil {
			fmt.Fprintf(out, "%s: %v\n", path, perr)
			errs = append(errs, perr)
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", path)
	}
	return errors.Join(errs...)
}
