package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/apporte/internal/cmd"
	"github.com/felixgeelhaar/apporte/internal/exitcode"
)

func main() {
	// Create a context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	// Check if error was due to context cancellation (e.g., Ctrl+C)
	if errors.Is(ctx.Err(), context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		stop()
		exitcode.Exit(exitcode.Interrupted)
	}

	// Commands that answer with their exit status print nothing more.
	var coded *exitcode.Error
	if !errors.As(err, &coded) || coded.Err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	exitcode.ExitWithError(err)
}
