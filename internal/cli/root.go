package cli

import (
	"github.com/spf13/cobra"

	configcmd "github.com/RigiResearch/middleware-sub001/cmd/specctl/configcmd"
	"github.com/RigiResearch/middleware-sub001/cmd/specctl/declarative"
	speccmd "github.com/RigiResearch/middleware-sub001/cmd/specctl/spec"
	templatecmd "github.com/RigiResearch/middleware-sub001/cmd/specctl/template"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
)

// NewRootCommand constructs the root specctl command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "specctl",
		Short:         "specctl reconciles curated infrastructure specifications with live state",
		SilenceErrors: true,
	}
	options.Register(cmd)

	cmd.AddCommand(speccmd.NewSpecCommand())
	cmd.AddCommand(templatecmd.NewTemplateCommand())
	cmd.AddCommand(configcmd.NewConfigCommand())

	declarative.NewManager(cmd).Bind(cmd)
	return cmd
}
