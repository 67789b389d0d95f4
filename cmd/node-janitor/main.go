// Package main is the entry point for the node-janitor binary.
//
// node-janitor runs next to a CI build agent and keeps its disks from
// filling up. It delegates all functionality to the internal/cli package,
// which defines cobra commands. Without arguments it starts the monitoring
// loop, which is how the container image invokes it.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development, they default to "dev", "none", and "unknown".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shinji-kodama/node-janitor/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// SIGTERM is what the container runtime sends on stop.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cli.NewRootCommand()
	code := cli.Execute(ctx, rootCmd)
	stop()
	os.Exit(int(code))
}
