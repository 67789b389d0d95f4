// check.go implements "node-janitor check".
//
// check measures both watched filesystems once and reports them without
// cleaning anything. It exits with code 4 when either is at or above the
// threshold, which makes it usable as a container health probe.
package cli

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/node-janitor/internal/disk"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report disk usage once without cleaning up",
		Long: `Measure the Docker data root and the workspace root once.

Exit codes:
  0  both filesystems are below the threshold
  4  at least one filesystem is at or above the threshold`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := disk.NewChecker(a.log)
			reports, err := checker.CheckAll(cmd.Context(),
				[]string{a.cfg.Docker.RootDir, a.cfg.Workspace.RootDir}, a.cfg.Disk.Threshold)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "disk check failed", err)
			}

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				if err := printJSON(out, reports); err != nil {
					return err
				}
			} else if err := renderUsageTable(out, reports); err != nil {
				return err
			}

			if model.AnyCritical(reports) {
				return model.NewCLIError(model.ExitDiskCritical,
					fmt.Sprintf("disk usage at or above %d%%", a.cfg.Disk.Threshold))
			}
			return nil
		},
	}
}

// renderUsageTable prints one row per measured path.
func renderUsageTable(w io.Writer, reports []model.UsageReport) error {
	table := tablewriter.NewWriter(w)
	table.Header("Path", "Used", "Total", "Usage", "Threshold", "Status")
	for _, r := range reports {
		status := "ok"
		if r.Critical {
			status = "critical"
		}
		if err := table.Append([]string{
			r.Path,
			formatBytes(r.UsedBytes),
			formatBytes(r.TotalBytes),
			fmt.Sprintf("%d%%", r.UsedPercent),
			fmt.Sprintf("%d%%", r.Threshold),
			status,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
