// Command launchlab runs the DAO launch ledger: an HTTP explorer over a live
// runtime (serve), an end-to-end launch and timelock scenario (simulate), and
// a preflight of a cluster mint against the launch authority rules (check-mint).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
