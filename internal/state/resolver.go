package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
)

const (
	defaultFileName = "last.json"
	appDirName      = "specctl"
)

var (
	errConflictingOverrides = errors.New("state file override is invalid: specify either --state-file or --state-file-name")
	errRelativeStateFile    = errors.New("state file override is invalid: must provide an absolute path")
	errInvalidFileName      = errors.New("state file override is invalid: filename must not contain path separators")
)

// Resolver places state files under the XDG state directory, one file per
// template.
type Resolver struct {
	getenv  func(string) string
	homeDir func() (string, error)
}

// NewResolver constructs a state path resolver.
func NewResolver() *Resolver {
	return &Resolver{getenv: os.Getenv, homeDir: os.UserHomeDir}
}

func (r *Resolver) Resolve(overrides pkgstate.Overrides) (string, error) {
	if overrides.StateFilePath != "" && overrides.StateFileName != "" {
		return "", errConflictingOverrides
	}

	if overrides.StateFilePath != "" {
		if !filepath.IsAbs(overrides.StateFilePath) {
			return "", errRelativeStateFile
		}
		return filepath.Clean(overrides.StateFilePath), nil
	}

	dir := overrides.StateDirectory
	if dir == "" {
		var err error
		dir, err = r.defaultDirectory()
		if err != nil {
			return "", fmt.Errorf("determine state directory: %w", err)
		}
	}
	dir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", fmt.Errorf("resolve state directory: %w", err)
	}

	fileName := overrides.StateFileName
	if fileName == "" {
		fileName = defaultFileName
		if overrides.Template != "" {
			fileName = overrides.Template + ".json"
		}
	}
	if invalidFileName(fileName) {
		return "", errInvalidFileName
	}

	return filepath.Join(dir, fileName), nil
}

func invalidFileName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return true
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}

func (r *Resolver) defaultDirectory() (string, error) {
	getenv := r.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if xdg := getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(filepath.Clean(xdg), appDirName), nil
	}

	homeDir := r.homeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	if home == "" {
		return "", errors.New("unable to determine user home directory")
	}
	return filepath.Join(filepath.Clean(home), ".local", "state", appDirName), nil
}

// ErrConflictingOverrides exposes the override validation error.
func ErrConflictingOverrides() error { return errConflictingOverrides }

// ErrRelativeStateFile exposes the relative path validation error.
func ErrRelativeStateFile() error { return errRelativeStateFile }

// ErrInvalidFileName exposes invalid filename validation error.
func ErrInvalidFileName() error { return errInvalidFileName }
