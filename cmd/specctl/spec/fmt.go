package spec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

const stepFmt = "fmt"

// FmtOptions captures CLI flag values.
type FmtOptions struct {
	Files []string
	Write bool
	Check bool
}

// NewFmtCommand constructs the `specctl spec fmt` command.
func NewFmtCommand() *cobra.Command {
	opts := FmtOptions{}

	cmd := &cobra.Command{
		Use:   "fmt FILE...",
		Short: "Rewrite specification files in canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			opts.Files = args
			return runFmt(cmd, opts, defaultDeps)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write the result back to the source files")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "List files whose formatting differs and fail if any")
	cmd.MarkFlagsMutuallyExclusive("write", "check")

	return cmd
}

// RunFmtForTest executes the fmt flow with explicit dependencies (used in tests).
func RunFmtForTest(cmd *cobra.Command, opts FmtOptions, deps Deps) error {
	return runFmt(cmd, opts, deps)
}

func runFmt(cmd *cobra.Command, opts FmtOptions, deps Deps) (err error) {
	deps = deps.withDefaults()

	s, err := workflow.Start(cmd, stepFmt, map[string]string{
		"files": fmt.Sprint(len(opts.Files)),
		"write": fmt.Sprint(opts.Write),
		"check": fmt.Sprint(opts.Check),
	}, deps.Telemetry)
	if err != nil {
		return err
	}
	defer func() { err = s.Finish(err) }()

	ctx := workflow.Context(cmd)
	out := cmd.OutOrStdout()
	unformatted := 0
	for _, path := range opts.Files {
		var (
			doc       document
			formatted []byte
		)
		err := s.Phase(ctx, telemetry.PhaseParse, map[string]string{"file": path}, func(context.Context) error {
			var err error
			doc, err = readDocument(deps, path)
			return err
		})
		if err != nil {
			return err
		}
		err = s.Phase(ctx, telemetry.PhasePrint, map[string]string{"file": path}, func(context.Context) error {
			var err error
			formatted, err = notation.Print(doc.spec)
			return err
		})
		if err != nil {
			return err
		}

		changed := !bytes.Equal(doc.source, formatted)
		switch {
		case opts.Check:
			if changed {
				unformatted++
				fmt.Fprintln(out, path)
			}
		case opts.Write:
			if !changed {
				continue
			}
			err := s.Phase(ctx, telemetry.PhasePersist, map[string]string{"file": path}, func(context.Context) error {
				if err := deps.WriteFile(path, formatted, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, path)
		default:
			if _, err := out.Write(formatted); err != nil {
				return fmt.Errorf("write formatted specification: %w", err)
			}
		}
	}

	if unformatted > 0 {
		s.Metadata["unformatted"] = fmt.Sprint(unformatted)
		return errNotFormatted
	}
	return nil
}
