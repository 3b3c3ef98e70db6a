package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotsync/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	if err := runner.app().Run(ctx, os.Args); err != nil {
		logger.Error("spotsync failed", "error", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process status. Partial batches return nil and exit 0.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
