// run.go implements "node-janitor run", the monitoring loop.
// The root command runs the same loop when invoked without a subcommand.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/node-janitor/internal/metrics"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// NewRunCommand creates the "run" cobra command.
func NewRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring loop (default)",
		Long: `Check disk usage every interval and clean up when a filesystem reaches
the threshold. Stops on SIGINT or SIGTERM.

Examples:
  node-janitor run
  node-janitor run --threshold 80 --interval 10
  DISK_THRESHOLD=80 node-janitor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return loop(cmd.Context(), a)
		},
	}
}

// loop is the monitoring entry shared by the root and "run" commands.
// Tests replace it to observe dispatch without a Docker daemon.
var loop = runLoop

// runLoop runs the monitor, and the metrics server when enabled, until ctx
// is cancelled or the monitor fails.
func runLoop(ctx context.Context, a *app) error {
	d, err := buildDeps(a, true)
	if err != nil {
		return err
	}
	defer d.Close()

	a.log.WithFields(map[string]interface{}{
		"docker_root":    a.cfg.Docker.RootDir,
		"workspace_root": a.cfg.Workspace.RootDir,
		"threshold":      a.cfg.Disk.Threshold,
		"interval_min":   a.cfg.Check.Interval,
		"jenkins":        a.cfg.Jenkins.Enabled(),
	}).Info("node-janitor starting")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A metrics listener that fails (address in use) stops the loop too.
	serverErr := make(chan error, 1)
	if d.recorder != nil {
		srv := metrics.NewServer(a.cfg.Metrics.Addr, d.recorder, a.log)
		go func() {
			err := srv.Run(ctx)
			if err != nil {
				a.log.WithError(err).Error("metrics server failed")
				cancel()
			}
			serverErr <- err
		}()
	} else {
		serverErr <- nil
	}

	loopErr := d.monitor.Run(ctx)
	cancel()
	srvErr := <-serverErr

	if loopErr != nil {
		var cliErr *model.CLIError
		if errors.As(loopErr, &cliErr) {
			return cliErr
		}
		return model.WrapCLIError(model.ExitGeneralError, "monitoring stopped", loopErr)
	}
	if srvErr != nil {
		return model.WrapCLIError(model.ExitGeneralError, "metrics server failed", srvErr)
	}
	return nil
}
