package state

import (
	"errors"
	"path/filepath"
	"testing"

	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
)

func fixedResolver(env map[string]string, home string) *Resolver {
	return &Resolver{
		getenv:  func(key string) string { return env[key] },
		homeDir: func() (string, error) { return home, nil },
	}
}

func TestResolverUsesAbsoluteOverrides(t *testing.T) {
	path, err := NewResolver().Resolve(pkgstate.Overrides{StateFilePath: "/tmp/custom.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/tmp/custom.json" {
		t.Fatalf("expected /tmp/custom.json, got %s", path)
	}
}

func TestResolverRejectsRelativePath(t *testing.T) {
	_, err := NewResolver().Resolve(pkgstate.Overrides{StateFilePath: "relative.json"})
	if !errors.Is(err, ErrRelativeStateFile()) {
		t.Fatalf("expected relative path error, got %v", err)
	}
}

func TestResolverNamesFileAfterTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := NewResolver().Resolve(pkgstate.Overrides{Template: "prod", StateDirectory: dir})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if path != filepath.Join(dir, "prod.json") {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestResolverDefaultsToXDGStateHome(t *testing.T) {
	r := fixedResolver(map[string]string{"XDG_STATE_HOME": "/var/lib/xdg"}, "/home/ops")
	path, err := r.Resolve(pkgstate.Overrides{})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if path != filepath.Join("/var/lib/xdg", "specctl", "last.json") {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestResolverDefaultsToHomeDirectory(t *testing.T) {
	r := fixedResolver(nil, "/home/ops")
	path, err := r.Resolve(pkgstate.Overrides{Template: "staging"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if path != filepath.Join("/home/ops", ".local", "state", "specctl", "staging.json") {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestResolverMissingHome(t *testing.T) {
	r := fixedResolver(nil, "")
	if _, err := r.Resolve(pkgstate.Overrides{}); err == nil {
		t.Fatal("expected error without a home directory")
	}
}

func TestResolverConflictingOverrides(t *testing.T) {
	_, err := NewResolver().Resolve(pkgstate.Overrides{StateFilePath: "/tmp/custom.json", StateFileName: "custom.json"})
	if !errors.Is(err, ErrConflictingOverrides()) {
		t.Fatalf("expected conflicting overrides error, got %v", err)
	}
}

func TestResolverNormalisesRelativeDirectory(t *testing.T) {
	path, err := NewResolver().Resolve(pkgstate.Overrides{StateDirectory: "relative/dir", StateFileName: "state.json"})
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %s", path)
	}
}

func TestInvalidFileName(t *testing.T) {
	for _, name := range []string{"", "..", "nested/file.json", `win\file.json`, "bad\x01.json"} {
		if !invalidFileName(name) {
			t.Fatalf("expected %q to be invalid", name)
		}
	}
	if invalidFileName("prod.json") {
		t.Fatal("expected simple filename to be valid")
	}
	_, err := NewResolver().Resolve(pkgstate.Overrides{StateDirectory: t.TempDir(), Template: "a/b"})
	if !errors.Is(err, ErrInvalidFileName()) {
		t.Fatalf("expected invalid filename for template with separator, got %v", err)
	}
}
