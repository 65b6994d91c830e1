package configcmd_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RigiResearch/middleware-sub001/internal/cli"
	"github.com/RigiResearch/middleware-sub001/internal/config"
)

const settings = `
defaults:
  store: kube
  output: text
commands:
  spec merge:
    out: merged.tf
    output: json
`

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	path := filepath.Join(dir, "specctl.yaml")
	if err := os.WriteFile(path, []byte(settings), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestShowCommandResolution(t *testing.T) {
	path := isolate(t)

	out, err := execute(t, "config", "show", "spec", "merge", "--config", path, "--output", "json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var payload struct {
		CommandPath string `json:"commandPath"`
		SourcePath  string `json:"sourcePath"`
		Flags       []struct {
			Name   string `json:"name"`
			Value  any    `json:"value"`
			Source string `json:"source"`
		} `json:"flags"`
		Overrides []string `json:"overrides"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if payload.CommandPath != "spec merge" || payload.SourcePath != path {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if len(payload.Flags) != 3 {
		t.Fatalf("expected out, output and store, got %#v", payload.Flags)
	}
	sources := map[string]string{}
	for _, f := range payload.Flags {
		sources[f.Name] = f.Source
	}
	if sources["out"] != "command" || sources["output"] != "command" || sources["store"] != "defaults" {
		t.Fatalf("unexpected sources %#v", sources)
	}
	if len(payload.Overrides) != 1 || !strings.Contains(payload.Overrides[0], "output") {
		t.Fatalf("unexpected overrides %#v", payload.Overrides)
	}
}

func TestShowDefaultsAsText(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "show", "--output", "text")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Source:") || !strings.Contains(out, "store") || strings.Contains(out, "merged.tf") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestShowRejectsUnknownCommand(t *testing.T) {
	path := isolate(t)

	_, err := execute(t, "config", "show", "spec", "deploy", "--config", path)
	if !errors.Is(err, config.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}
