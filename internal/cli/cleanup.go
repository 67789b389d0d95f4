// cleanup.go implements "node-janitor cleanup".
//
// cleanup runs the full drain, clean and restore sequence immediately,
// regardless of current usage. --docker and --workspace restrict it to one
// target; with neither flag both are cleaned.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/node-janitor/internal/model"
	"github.com/shinji-kodama/node-janitor/internal/monitor"
)

// NewCleanupCommand creates the "cleanup" cobra command.
func NewCleanupCommand(a *app) *cobra.Command {
	var dockerOnly, workspaceOnly bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Clean up now without waiting for the threshold",
		Long: `Take the node offline, prune Docker resources and/or empty the workspace
root, then bring the node back online.

Examples:
  node-janitor cleanup
  node-janitor cleanup --docker
  node-janitor cleanup --workspace --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := cleanupTargets(dockerOnly, workspaceOnly)

			d, err := buildDeps(a, false)
			if err != nil {
				return err
			}
			defer d.Close()

			res := d.monitor.ForceCleanup(cmd.Context(), targets)

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				printCycleSummary(out, res)
			}

			return cleanupOutcome(res)
		},
	}

	cmd.Flags().BoolVar(&dockerOnly, "docker", false, "Prune Docker resources")
	cmd.Flags().BoolVar(&workspaceOnly, "workspace", false, "Empty the workspace root")
	return cmd
}

// cleanupTargets maps the flags to targets; no flag means everything.
func cleanupTargets(dockerOnly, workspaceOnly bool) monitor.Targets {
	if !dockerOnly && !workspaceOnly {
		return monitor.Targets{Docker: true, Workspace: true}
	}
	return monitor.Targets{Docker: dockerOnly, Workspace: workspaceOnly}
}

// cleanupOutcome turns a forced cycle into the command's exit status.
func cleanupOutcome(res model.CycleResult) error {
	if res.Action == model.ActionSkipped {
		if res.Err != nil {
			return model.WrapCLIError(model.ExitControllerError, "cleanup skipped", res.Err)
		}
		return model.NewCLIError(model.ExitControllerError, "cleanup skipped: node is busy")
	}
	if res.Err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cleanup finished with errors", res.Err)
	}
	return nil
}

// printCycleSummary writes a short human-readable account of a cycle.
func printCycleSummary(w io.Writer, res model.CycleResult) {
	fmt.Fprintf(w, "Action: %s\n", res.Action)
	for _, r := range res.Before {
		fmt.Fprintf(w, "Before: %s\n", r)
	}
	for _, p := range res.Prunes {
		fmt.Fprintf(w, "Pruned %s: %d deleted, %s reclaimed\n",
			p.Resource, p.ItemsDeleted, formatBytes(p.SpaceReclaimed))
	}
	if res.WorkspaceCleaned {
		fmt.Fprintln(w, "Workspace emptied")
	}
	for _, r := range res.After {
		fmt.Fprintf(w, "After:  %s\n", r)
	}
	fmt.Fprintf(w, "Total reclaimed: %s in %s\n",
		formatBytes(res.SpaceReclaimed()), res.Duration().Round(time.Millisecond))
}
