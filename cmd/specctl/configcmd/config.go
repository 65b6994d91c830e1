// Package configcmd implements `specctl config`, which explains how the
// declarative configuration file resolves for a command.
package configcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/config"
)

// NewConfigCommand constructs the `specctl config` parent command.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect declarative configuration",
	}
	cmd.AddCommand(NewShowCommand())
	return cmd
}

// NewShowCommand constructs the `specctl config show` command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [COMMAND...]",
		Short: "Show the flag values the configuration file supplies to a command",
		Example: "  specctl config show\n" +
			"  specctl config show spec merge --output json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runShow(cmd, args)
		},
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := options.ResolveOutput(options.FromCommand(cmd).Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	manager := declarative.NewManager(cmd.Root())
	commandPath := strings.Join(args, " ")
	if commandPath != "" && !manager.Catalog().IsCommandSupported(commandPath) {
		return fmt.Errorf("%w: %s", config.ErrUnknownCommand, commandPath)
	}

	settings, err := manager.LoadSettings(cmd)
	if err != nil {
		return err
	}
	summary, err := config.FormatSummary(config.Resolve(settings, commandPath), format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), summary)
	return err
}
