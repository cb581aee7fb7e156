// File: cmd/filterctl/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/filterctl/cmd"
	"github.com/xkilldash9x/filterctl/internal/observability"
)

// Allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	// SIGINT and SIGTERM cancel the run; the browser and display are still released.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	osExit(code)
}

func run(ctx context.Context, args []string) int {
	defer observability.Sync()
	return cmd.ExitCode(ctx, cmd.Execute(ctx, args))
}
