// Package cli implements the cobra-based CLI commands for node-janitor.
//
// Each subcommand (run, check, cleanup, history, config) is defined in its
// own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
//
// Invoked without a subcommand the binary runs the monitoring loop, which
// is what the container entrypoint relies on.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shinji-kodama/node-janitor/internal/config"
	"github.com/shinji-kodama/node-janitor/internal/logging"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	jsonOutput bool

	// verbose forces the log level to debug regardless of LOG_LEVEL.
	verbose bool

	// cfgFile is an optional YAML configuration file.
	cfgFile string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// app carries state resolved once in PersistentPreRunE and shared by the
// subcommand that runs.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *logrus.Logger
}

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "node-janitor",
		Short: "Keeps CI build nodes from running out of disk",
		Long: `node-janitor watches the Docker data root and the CI workspace root of a
build node. When either filesystem reaches the usage threshold it drains
the node, prunes Docker resources and wipes the workspace, then puts the
node back into service.

Run without a subcommand it starts the monitoring loop.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Args must be NoArgs so a mistyped subcommand is an error rather
		// than silently starting the loop.
		Args: cobra.NoArgs,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return loop(cmd.Context(), a)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	d := config.DefaultConfig()
	flags.Int("threshold", d.Disk.Threshold, "Disk usage percentage that triggers cleanup (env DISK_THRESHOLD)")
	flags.Int("interval", d.Check.Interval, "Minutes between checks (env CHECK_INTERVAL)")
	flags.String("docker-root", d.Docker.RootDir, "Mount point of the Docker data root (env DOCKER_ROOT_DIR)")
	flags.String("workspace-root", d.Workspace.RootDir, "CI workspace root (env WORKSPACE_ROOT_DIR)")
	flags.String("metrics-addr", d.Metrics.Addr, "Listen address for /metrics and /healthz, empty disables (env METRICS_ADDR)")
	flags.String("history-db", d.History.Path, "SQLite file recording cycle history, empty disables (env HISTORY_DB)")

	for key, name := range map[string]string{
		"disk.threshold":     "threshold",
		"check.interval":     "interval",
		"docker.root_dir":    "docker-root",
		"workspace.root_dir": "workspace-root",
		"metrics.addr":       "metrics-addr",
		"history.path":       "history-db",
	} {
		// BindPFlag only fails for a nil flag, which would be a typo above.
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(NewRunCommand(a))
	rootCmd.AddCommand(NewCheckCommand(a))
	rootCmd.AddCommand(NewCleanupCommand(a))
	rootCmd.AddCommand(NewHistoryCommand(a))
	rootCmd.AddCommand(NewConfigCommand(a))

	return rootCmd
}

// setup resolves configuration and builds the logger.
func (a *app) setup() error {
	if err := config.ReadFile(a.v, cfgFile); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid logging configuration", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// Execute runs the root command and returns the process exit code.
// This is the main entry point called from main.go.
//
// CLIError types carry their own exit codes; other errors default to
// exit code 1.
func Execute(ctx context.Context, rootCmd *cobra.Command) model.ExitCode {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return model.ExitSuccess
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		return cliErr.Code
	}

	printError(err.Error(), nil)
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
