// Command showpulse scrapes vendor show listings into per-shard snapshots,
// combines shards and serves the aggregated summaries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "showpulse:", err)
		stop()
		os.Exit(1)
	}
}
