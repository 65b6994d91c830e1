package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "SPECCTL_CONFIG"

const (
	workingDirFile = "specctl.yaml"
	appDirName     = "specctl"
	userConfigFile = "config.yaml"
)

// ConfigSource identifies where the configuration file was discovered.
type ConfigSource string

const (
	ConfigSourceExplicit   ConfigSource = "explicit"
	ConfigSourceEnv        ConfigSource = "env"
	ConfigSourceWorkingDir ConfigSource = "working-dir"
	ConfigSourceXDG        ConfigSource = "xdg"
	ConfigSourceHome       ConfigSource = "home"
)

// LocationResult describes the discovered configuration file.
type LocationResult struct {
	Path   string
	Source ConfigSource
}

// ErrConfigNotFound is returned when no configuration file can be located.
var ErrConfigNotFound = errors.New("specctl configuration not found")

type candidate struct {
	path   func() (string, bool)
	source ConfigSource
}

// LocateConfig discovers the configuration file following the precedence rules:
// explicit path → SPECCTL_CONFIG → ./specctl.yaml → XDG config → ~/.config/specctl/config.yaml.
// An explicit path or environment value that does not exist is an error; the
// implicit locations are skipped when absent.
func LocateConfig(explicitPath string) (LocationResult, error) {
	if path := strings.TrimSpace(explicitPath); path != "" {
		return requireFile(path, ConfigSourceExplicit)
	}
	if path, ok := os.LookupEnv(EnvConfigPath); ok && strings.TrimSpace(path) != "" {
		return requireFile(strings.TrimSpace(path), ConfigSourceEnv)
	}

	candidates := []candidate{
		{source: ConfigSourceWorkingDir, path: func() (string, bool) {
			wd, err := os.Getwd()
			return filepath.Join(wd, workingDirFile), err == nil
		}},
		{source: ConfigSourceXDG, path: func() (string, bool) {
			xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
			return filepath.Join(xdg, appDirName, userConfigFile), xdg != ""
		}},
		{source: ConfigSourceHome, path: func() (string, bool) {
			home, err := os.UserHomeDir()
			return filepath.Join(home, ".config", appDirName, userConfigFile), err == nil && home != ""
		}},
	}
	for _, c := range candidates {
		if path, ok := c.path(); ok && exists(path) {
			return LocationResult{Path: path, Source: c.source}, nil
		}
	}
	return LocationResult{}, ErrConfigNotFound
}

func requireFile(path string, source ConfigSource) (LocationResult, error) {
	abs, err := toAbsolute(filepath.Clean(path))
	if err != nil {
		return LocationResult{}, err
	}
	if !exists(abs) {
		return LocationResult{}, fmt.Errorf("%w: %s", ErrConfigNotFound, abs)
	}
	return LocationResult{Path: abs, Source: source}, nil
}

func toAbsolute(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}

func exists(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !stat.IsDir()
}
