package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RigiResearch/middleware-sub001/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", tmpDir)
	t.Cleanup(changeWorkingDir(t, tmpDir))
	return tmpDir
}

func TestLocateConfigExplicitPathHasPriority(t *testing.T) {
	tmpDir := isolate(t)
	explicitPath := filepath.Join(tmpDir, "explicit.yaml")
	mustWriteFile(t, explicitPath, "store: file")

	envPath := filepath.Join(tmpDir, "env.yaml")
	mustWriteFile(t, envPath, "store: kube")
	t.Setenv(config.EnvConfigPath, envPath)

	result, err := config.LocateConfig(explicitPath)
	if err != nil {
		t.Fatalf("LocateConfig returned error: %v", err)
	}
	if result.Path != explicitPath {
		t.Fatalf("expected explicit path %q, got %q", explicitPath, result.Path)
	}
	if result.Source != config.ConfigSourceExplicit {
		t.Fatalf("expected explicit source, got %s", result.Source)
	}
}

func TestLocateConfigExplicitPathMustExist(t *testing.T) {
	tmpDir := isolate(t)
	mustWriteFile(t, filepath.Join(tmpDir, "specctl.yaml"), "store: file")

	_, err := config.LocateConfig(filepath.Join(tmpDir, "missing.yaml"))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLocateConfigEnvironmentVariable(t *testing.T) {
	tmpDir := isolate(t)
	envPath := filepath.Join(tmpDir, "env.yaml")
	mustWriteFile(t, envPath, "store: file")
	t.Setenv(config.EnvConfigPath, envPath)

	result, err := config.LocateConfig("")
	if err != nil {
		t.Fatalf("LocateConfig returned error: %v", err)
	}
	if result.Path != envPath {
		t.Fatalf("expected env path %q, got %q", envPath, result.Path)
	}
	if result.Source != config.ConfigSourceEnv {
		t.Fatalf("expected env source, got %s", result.Source)
	}
}

func TestLocateConfigWorkingDirectory(t *testing.T) {
	tmpDir := isolate(t)
	wdPath := filepath.Join(tmpDir, "specctl.yaml")
	mustWriteFile(t, wdPath, "store: file")

	result, err := config.LocateConfig("")
	if err != nil {
		t.Fatalf("LocateConfig returned error: %v", err)
	}
	expectedPath, err := filepath.EvalSymlinks(wdPath)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	actualPath, err := filepath.EvalSymlinks(result.Path)
	if err != nil {
		t.Fatalf("eval result symlinks: %v", err)
	}
	if actualPath != expectedPath {
		t.Fatalf("expected working directory path %q, got %q", expectedPath, actualPath)
	}
	if result.Source != config.ConfigSourceWorkingDir {
		t.Fatalf("expected working-dir source, got %s", result.Source)
	}
}

func TestLocateConfigXDGDirectory(t *testing.T) {
	isolate(t)
	xdgDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgDir)

	xdgPath := filepath.Join(xdgDir, "specctl", "config.yaml")
	mustWriteFile(t, xdgPath, "store: file")

	result, err := config.LocateConfig("")
	if err != nil {
		t.Fatalf("LocateConfig returned error: %v", err)
	}
	if result.Path != xdgPath {
		t.Fatalf("expected XDG path %q, got %q", xdgPath, result.Path)
	}
	if result.Source != config.ConfigSourceXDG {
		t.Fatalf("expected XDG source, got %s", result.Source)
	}
}

func TestLocateConfigHomeDirectoryFallback(t *testing.T) {
	home := isolate(t)

	homePath := filepath.Join(home, ".config", "specctl", "config.yaml")
	mustWriteFile(t, homePath, "store: file")

	result, err := config.LocateConfig("")
	if err != nil {
		t.Fatalf("LocateConfig returned error: %v", err)
	}
	if result.Path != homePath {
		t.Fatalf("expected home fallback path %q, got %q", homePath, result.Path)
	}
	if result.Source != config.ConfigSourceHome {
		t.Fatalf("expected home source, got %s", result.Source)
	}
}

func TestLocateConfigMissingReturnsError(t *testing.T) {
	isolate(t)

	_, err := config.LocateConfig("")
	if err == nil {
		t.Fatalf("expected error when no configuration file is present")
	}
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func changeWorkingDir(t *testing.T, dir string) func() {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() {
		_ = os.Chdir(original)
	}
}
