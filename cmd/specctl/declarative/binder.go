package declarative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli/logging"
	"github.com/RigiResearch/middleware-sub001/internal/cli/options"
	"github.com/RigiResearch/middleware-sub001/internal/config"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

// AnnotationEnabled marks commands whose unset flags are filled from the
// configuration file.
const AnnotationEnabled = "declarative-config"

// Mark opts cmd into configuration file support.
func Mark(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[AnnotationEnabled] = "true"
}

// Manager wires configuration discovery and application into annotated commands.
type Manager struct {
	catalog config.FlagCatalog
	loader  *config.Loader
}

// NewManager constructs a manager for the provided root command. Build it
// after every subcommand is registered.
func NewManager(root *cobra.Command) *Manager {
	catalog := config.NewCobraCatalog(root)
	return &Manager{
		catalog: catalog,
		loader:  config.NewLoader(catalog),
	}
}

// Loader returns the loader validating against the bound command tree.
func (m *Manager) Loader() *config.Loader {
	return m.loader
}

// Catalog returns the flag catalog of the bound command tree.
func (m *Manager) Catalog() config.FlagCatalog {
	return m.catalog
}

// Bind walks the command tree and attaches configuration loading to each annotated command.
func (m *Manager) Bind(root *cobra.Command) {
	walkCommands(root, func(cmd *cobra.Command) {
		if cmd.Annotations == nil || strings.ToLower(cmd.Annotations[AnnotationEnabled]) != "true" {
			return
		}
		existing := cmd.PreRunE
		cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
			if err := m.apply(cmd); err != nil {
				return err
			}
			if existing != nil {
				return existing(cmd, args)
			}
			return nil
		}
	})
}

// LoadSettings locates and parses the configuration named by --config, or
// the first implicit location. It returns nil settings when no file exists
// and none was requested.
func (m *Manager) LoadSettings(cmd *cobra.Command) (*config.Settings, error) {
	explicitPath := options.FromCommand(cmd).Config
	location, err := config.LocateConfig(explicitPath)
	if err != nil {
		if explicitPath == "" && errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.loader.Load(location.Path)
}

func (m *Manager) apply(cmd *cobra.Command) error {
	settings, err := m.LoadSettings(cmd)
	if err != nil || settings == nil {
		return err
	}
	resolved, err := config.Apply(cmd, settings)
	if err != nil {
		return err
	}
	storeResolution(cmd, resolved)
	return nil
}

func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, child := range cmd.Commands() {
		walkCommands(child, fn)
	}
}

type resolutionContextKey struct{}

func storeResolution(cmd *cobra.Command, resolved *config.Resolution) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, resolutionContextKey{}, resolved))
}

// ResolutionFromContext retrieves the resolution stored for the command.
func ResolutionFromContext(cmd *cobra.Command) (*config.Resolution, bool) {
	if cmd == nil || cmd.Context() == nil {
		return nil, false
	}
	resolved, ok := cmd.Context().Value(resolutionContextKey{}).(*config.Resolution)
	return resolved, ok
}

// EmitTelemetry logs the resolved configuration of cmd, if any.
func EmitTelemetry(logger telemetry.StructuredLogger, cmd *cobra.Command) {
	resolved, ok := ResolutionFromContext(cmd)
	if logger == nil || !ok {
		return
	}

	metadata := map[string]string{
		"command": resolved.CommandPath,
	}
	if resolved.SourcePath != "" {
		metadata["sourcePath"] = resolved.SourcePath
	}
	if len(resolved.Overrides) > 0 {
		metadata["overrides"] = strings.Join(resolved.Overrides, ",")
	}
	if len(resolved.Warnings) > 0 {
		metadata["warnings"] = strings.Join(resolved.Warnings, ",")
	}
	for name, value := range resolved.Flags {
		metadata["flag."+name] = logging.SanitizeText(fmt.Sprint(value.Value))
		metadata["flag."+name+".source"] = string(value.Source)
	}

	_ = logger.Emit(telemetry.Entry{
		Category: telemetry.CategoryConfig,
		Message:  "configuration resolved",
		Severity: telemetry.SeverityInfo,
		Metadata: metadata,
	})
}
