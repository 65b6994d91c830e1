// Package options holds the flags shared by every specctl command and the
// template store they select.
package options

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

// Global flag names.
const (
	FlagConfig    = "config"
	FlagStore     = "store"
	FlagStoreDir  = "store-dir"
	FlagNamespace = "namespace"
	FlagOutput    = "output"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreKube   = "kube"
)

// Output formats.
const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
)

// EnvNamespace overrides the namespace of the kube store when --namespace is unset.
const EnvNamespace = "SPECCTL_NAMESPACE"

var (
	errUnknownStore  = errors.New("unknown template store")
	errUnknownOutput = errors.New("unsupported output format")
)

// ErrUnknownStore exposes the sentinel.
func ErrUnknownStore() error { return errUnknownStore }

// ErrUnknownOutput exposes the sentinel.
func ErrUnknownOutput() error { return errUnknownOutput }

var (
	isTerminal = term.IsTerminal
	kubeClient = newKubeClient
	homeDir    = os.UserHomeDir
)

// Global carries the persistent flags of the root command.
type Global struct {
	Config    string
	Store     string
	StoreDir  string
	Namespace string
	Output    string
}

// Register installs the global flags on cmd as persistent flags.
func Register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(FlagConfig, "", "Path to the specctl configuration file")
	flags.String(FlagStore, StoreFile, "Template store: memory, file or kube")
	flags.String(FlagStoreDir, "", "Directory of the file template store")
	flags.String(FlagNamespace, "", "Namespace of the kube template store")
	flags.String(FlagOutput, OutputAuto, "Report format: auto, text or json")
}

// FromCommand reads the global flags visible to cmd. Missing flags read as empty.
func FromCommand(cmd *cobra.Command) Global {
	get := func(name string) string {
		value, err := cmd.Flags().GetString(name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(value)
	}
	return Global{
		Config:    get(FlagConfig),
		Store:     get(FlagStore),
		StoreDir:  get(FlagStoreDir),
		Namespace: get(FlagNamespace),
		Output:    get(FlagOutput),
	}
}

// OpenStore constructs the template store selected by g.
func OpenStore(g Global) (templates.Store, error) {
	switch strings.ToLower(g.Store) {
	case StoreMemory:
		return templates.NewMemoryStore(), nil
	case "", StoreFile:
		dir := g.StoreDir
		if dir == "" {
			var err error
			if dir, err = DefaultStoreDir(); err != nil {
				return nil, err
			}
		}
		return templates.NewFileStore(dir), nil
	case StoreKube:
		client, err := kubeClient()
		if err != nil {
			return nil, fmt.Errorf("kube template store: %w", err)
		}
		namespace := g.Namespace
		if namespace == "" {
			namespace = os.Getenv(EnvNamespace)
		}
		return templates.NewKubeStore(client, namespace), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownStore, g.Store)
	}
}

// DefaultStoreDir returns $XDG_DATA_HOME/specctl/templates, falling back to
// ~/.local/share/specctl/templates.
func DefaultStoreDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "specctl", "templates"), nil
	}
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("determine template directory: %w", err)
	}
	if home == "" {
		return "", errors.New("determine template directory: home directory unknown")
	}
	return filepath.Join(home, ".local", "share", "specctl", "templates"), nil
}

// ResolveOutput maps the output flag to text or json. Auto picks text for
// terminals and json otherwise.
func ResolveOutput(format string, w io.Writer) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", OutputAuto:
		if f, ok := w.(*os.File); ok && isTerminal(int(f.Fd())) {
			return OutputText, nil
		}
		return OutputJSON, nil
	case OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownOutput, format)
	}
}

func newKubeClient() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
		cfg, err = clientConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("load kubeconfig: %w", err)
		}
	}
	return kubernetes.NewForConfig(cfg)
}
