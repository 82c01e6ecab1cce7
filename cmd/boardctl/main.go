// Command boardctl is a terminal client for a running tubeboard server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultEnv()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "boardctl:", err)
		stop()
		os.Exit(1)
	}
}
