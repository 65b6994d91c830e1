package main

import (
	"context"
	"fmt"
	"os"

	"github.com/RigiResearch/middleware-sub001/internal/cli"
	telemetryinit "github.com/RigiResearch/middleware-sub001/internal/telemetry"
)

var (
	telemetryInit = telemetryinit.InitProvider
	rootCommand   = cli.NewRootCommand
	osExit        = os.Exit
)

func main() {
	ctx := context.Background()
	shutdown, err := telemetryInit(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telemetry: %v\n", err)
	}

	cmd := rootCommand()
	err = cmd.ExecuteContext(ctx)

	if shutdown != nil {
		cleanupCtx, cancel := context.WithTimeout(ctx, telemetryinit.ShutdownTimeout)
		if serr := shutdown(cleanupCtx); serr != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown error: %v\n", serr)
		}
		cancel()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(cli.Classify(err).Code)
	}
}
