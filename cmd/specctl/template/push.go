package template

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

const stepPush = "push"

// PushOptions captures CLI arguments.
type PushOptions struct {
	Name   string
	File   string
	Global options.Global
}

type pushResult struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// NewPushCommand constructs the `specctl template push` command.
func NewPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push NAME FILE",
		Short: "Store a curated specification under NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts := PushOptions{Name: args[0], File: args[1], Global: options.FromCommand(cmd)}
			return runPush(cmd, opts, defaultDeps)
		},
	}
}

// RunPushForTest executes the push flow with explicit dependencies (used in tests).
func RunPushForTest(cmd *cobra.Command, opts PushOptions, deps Deps) error {
	return runPush(cmd, opts, deps)
}

func runPush(cmd *cobra.Command, opts PushOptions, deps Deps) (err error) {
	if err := templates.ValidateName(opts.Name); err != nil {
		return err
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

	s, err := workflow.Start(cmd, stepPush, map[string]string{"template": opts.Name, "file": opts.File}, deps.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = s.Finish(err) }()

	ctx := workflow.Context(cmd)
	var src []byte
	err = s.Phase(ctx, telemetry.PhaseParse, map[string]string{"file": opts.File}, func(context.Context) error {
		var err error
		src, _, err = parseFile(deps, opts.File)
		return err
	})
	if err != nil {
		return err
	}

	result := pushResult{Name: opts.Name, Digest: templates.Digest(src), UpdatedBy: deps.User()}
	err = s.Phase(ctx, telemetry.PhasePersist, map[string]string{"template": opts.Name}, func(ctx context.Context) error {
		return store.Save(ctx, templates.Template{Name: opts.Name, Source: src, UpdatedBy: result.UpdatedBy})
	})
	if err != nil {
		return err
	}
	s.Store("template saved", opts.Name, map[string]string{"digest": result.Digest})

	out := cmd.OutOrStdout()
	if format == options.OutputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err = fmt.Fprintf(out, "Template %s saved (%s)\n", result.Name, result.Digest)
	return err
}
