package cli_test

import (
	"testing"

	"github.com/RigiResearch/middleware-sub001/internal/cli"
)

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	cmd := cli.NewRootCommand()
	if cmd.Use != "specctl" {
		t.Fatalf("expected use specctl, got %s", cmd.Use)
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"spec", "template", "config"} {
		if !names[expected] {
			t.Fatalf("expected subcommand %s to be registered", expected)
		}
	}
	for _, flag := range []string{"config", "store", "store-dir", "namespace", "output"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("expected persistent flag --%s", flag)
		}
	}
}

func TestReconcileIsDeclarative(t *testing.T) {
	cmd := cli.NewRootCommand()
	sub, _, err := cmd.Find([]string{"template", "reconcile"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if sub.Annotations["declarative-config"] != "true" {
		t.Fatalf("expected reconcile to accept declarative configuration, got %#v", sub.Annotations)
	}
	if sub.PreRunE == nil {
		t.Fatalf("expected binder to install PreRunE")
	}
}
