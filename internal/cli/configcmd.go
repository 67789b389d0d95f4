// configcmd.go implements "node-janitor config", which prints
// the effective configuration after flags, environment and config file are
// merged. Secrets are masked.
package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the "config" cobra command.
func NewConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := a.cfg.Masked()
			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				return printJSON(out, masked)
			}
			data, err := yaml.Marshal(masked)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
}
