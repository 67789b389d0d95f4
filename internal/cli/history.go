// history.go implements "node-janitor history", which lists
// recently recorded monitoring cycles from the SQLite history database.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/node-janitor/internal/history"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// NewHistoryCommand creates the "history" cobra command.
func NewHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded monitoring cycles",
		Long: `List the most recent monitoring cycles, newest first. Requires a history
database (--history-db or HISTORY_DB).

Examples:
  node-janitor history --history-db /var/lib/node-janitor/history.db
  node-janitor history --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History.Path == "" {
				return model.NewCLIError(model.ExitConfigInvalid,
					"no history database configured (set --history-db or HISTORY_DB)")
			}

			store, err := history.Open(a.cfg.History.Path)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "cannot open history database", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "cannot read history", err)
			}

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				if entries == nil {
					entries = []history.Entry{}
				}
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No cycles recorded.")
				return nil
			}
			return renderHistoryTable(out, entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of cycles to show")
	return cmd
}

// renderHistoryTable prints one row per recorded cycle.
func renderHistoryTable(w io.Writer, entries []history.Entry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Started", "Action", "Before", "After", "Reclaimed", "Workspace", "Error")
	for _, e := range entries {
		workspace := "-"
		if e.WorkspaceCleaned {
			workspace = "emptied"
		}
		errText := "-"
		if e.Error != "" {
			errText = e.Error
		}
		if err := table.Append([]string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Action.String(),
			formatUsageList(e.Before),
			formatUsageList(e.After),
			formatBytes(e.ReclaimedBytes),
			workspace,
			errText,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// formatUsageList renders usage reports as "path=71%" pairs.
func formatUsageList(reports []model.UsageReport) string {
	if len(reports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		parts = append(parts, fmt.Sprintf("%s=%d%%", r.Path, r.UsedPercent))
	}
	return strings.Join(parts, " ")
}
