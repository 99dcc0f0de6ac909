// memoctl is the operator CLI: create accounts, bootstrap admins, revoke devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"memodams/backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cli.NewRootCommand(cli.OpenFromConfig).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "memoctl:", err)
		os.Exit(1)
	}
}
