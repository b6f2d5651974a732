// Package main is the entry point for the verifyctl CLI.
// The CLI submits verification runs and reports their results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"verifyctl/cmd/verifyctl/cmd"
)

func main() {
	// Ctrl+C cancels any in-flight request or wait.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
