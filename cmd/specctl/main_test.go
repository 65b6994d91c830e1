package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"

	"github.com/RigiResearch/middleware-sub001/internal/cli"
	telemetryinit "github.com/RigiResearch/middleware-sub001/internal/telemetry"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

type exitPanic struct{ code int }

func resetMainGlobals() {
	telemetryInit = telemetryinit.InitProvider
	rootCommand = cli.NewRootCommand
	osExit = os.Exit
}

func noTelemetry(context.Context) (func(context.Context) error, error) {
	return nil, nil
}

// runMain executes main and returns the exit code passed to osExit, or -1.
func runMain(t *testing.T) (code int) {
	t.Helper()
	code = -1
	osExit = func(c int) { panic(exitPanic{c}) }
	defer func() {
		if r := recover(); r != nil {
			if ep, ok := r.(exitPanic); ok {
				code = ep.code
				return
			}
			panic(r)
		}
	}()
	main()
	return code
}

func TestMainSuccess(t *testing.T) {
	t.Cleanup(func() {
		resetMainGlobals()
		os.Args = []string{"specctl"}
	})

	var shutdownCalled bool
	telemetryInit = func(context.Context) (func(context.Context) error, error) {
		return func(context.Context) error {
			shutdownCalled = true
			return nil
		}, nil
	}

	var executed bool
	rootCommand = func() *cobra.Command {
		return &cobra.Command{Run: func(cmd *cobra.Command, args []string) { executed = true }}
	}
	os.Args = []string{"specctl"}

	if code := runMain(t); code != -1 {
		t.Fatalf("unexpected exit code %d", code)
	}
	if !executed {
		t.Fatalf("expected root command to execute")
	}
	if !shutdownCalled {
		t.Fatalf("expected telemetry shutdown to run")
	}
}

func TestMainTelemetryInitError(t *testing.T) {
	t.Cleanup(func() {
		resetMainGlobals()
		os.Args = []string{"specctl"}
	})

	telemetryInit = func(context.Context) (func(context.Context) error, error) {
		return nil, errors.New("init failed")
	}
	rootCommand = func() *cobra.Command {
		return &cobra.Command{Run: func(cmd *cobra.Command, args []string) {}}
	}

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe stderr: %v", err)
	}
	os.Stderr = w
	defer func() {
		os.Stderr = oldStderr
		w.Close()
	}()

	os.Args = []string{"specctl"}
	main()

	w.Close()
	out, _ := io.ReadAll(r)
	r.Close()

	if !bytes.Contains(out, []byte("failed to initialize telemetry")) {
		t.Fatalf("expected telemetry init error in stderr, got %q", string(out))
	}
}

func TestMainExitCodes(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"parse error":      {err: &notation.ParseError{Message: "bad"}, want: cli.ExitDataError},
		"missing template": {err: fmt.Errorf("load: %w", templates.ErrTemplateNotFound()), want: cli.ExitNoInput},
		"other":            {err: errors.New("boom"), want: cli.ExitFailure},
		"explicit":         {err: &cli.ExitError{Code: 3, Err: errors.New("custom")}, want: 3},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Cleanup(func() {
				resetMainGlobals()
				os.Args = []string{"specctl"}
			})
			telemetryInit = noTelemetry
			rootCommand = func() *cobra.Command {
				return &cobra.Command{
					SilenceErrors: true,
					SilenceUsage:  true,
					RunE:          func(*cobra.Command, []string) error { return tc.err },
				}
			}
			os.Args = []string{"specctl"}

			if code := runMain(t); code != tc.want {
				t.Fatalf("exit code = %d, want %d", code, tc.want)
			}
		})
	}
}
