// root_test.go exercises command wiring, configuration
// resolution and exit-code mapping without a Docker daemon or CI controller.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/node-janitor/internal/config"
	"github.com/shinji-kodama/node-janitor/internal/history"
	"github.com/shinji-kodama/node-janitor/internal/model"
	"github.com/shinji-kodama/node-janitor/internal/monitor"
)

// clearEnv blanks every environment variable the janitor reads. Empty
// values are treated as unset, so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"JENKINS_URL", "JENKINS_USER", "JENKINS_PASS", "JENKINS_NODE",
		"DOCKER_HOST", "DOCKER_ROOT_DIR", "KEEP_IMAGES_UNTIL", "KEEP_LABEL",
		"WORKSPACE_ROOT_DIR", "DISK_THRESHOLD", "CHECK_INTERVAL",
		"METRICS_ADDR", "HISTORY_DB", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(name, "")
	}
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput, verbose, cfgFile = false, false, ""
	t.Cleanup(func() { jsonOutput, verbose, cfgFile = false, false, "" })

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHECK_INTERVAL", "10")
	t.Setenv("JENKINS_URL", "http://jenkins:8080")
	t.Setenv("JENKINS_NODE", "agent-1")
	t.Setenv("JENKINS_PASS", "s3cret")

	out, err := runRoot(t, "config", "--threshold", "85")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))

	assert.Equal(t, 85, got.Disk.Threshold, "flag overrides default")
	assert.Equal(t, 10, got.Check.Interval, "environment overrides default")
	assert.Equal(t, "/docker", got.Docker.RootDir)
	assert.Equal(t, 72, got.Docker.KeepImagesUntil)
	assert.Equal(t, "agent-1", got.Jenkins.Node)
	assert.Equal(t, "********", got.Jenkins.Pass)
	assert.NotContains(t, out, "s3cret")
}

func TestConfigCommandReadsConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "janitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disk:\n  threshold: 55\ndocker:\n  keep_label: keep\n"), 0o644))

	out, err := runRoot(t, "config", "--config", path, "--json")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 55, got.Disk.Threshold)
	assert.Equal(t, "keep", got.Docker.KeepLabel)
}

func TestInvalidConfigurationExitCode(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISK_THRESHOLD", "abc")

	_, err := runRoot(t, "config")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
}

func TestRootRejectsUnknownArguments(t *testing.T) {
	clearEnv(t)
	_, err := runRoot(t, "bogus")
	require.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		clearEnv(t)
		_, err := runRoot(t, "history")

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
	})

	t.Run("lists recorded cycles", func(t *testing.T) {
		clearEnv(t)
		dbPath := filepath.Join(t.TempDir(), "history.db")

		store, err := history.Open(dbPath)
		require.NoError(t, err)
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Record(context.Background(), model.CycleResult{
			StartedAt:  start,
			FinishedAt: start.Add(time.Minute),
			Action:     model.ActionCleaned,
			Before:     []model.UsageReport{{Path: "/docker", UsedPercent: 91, Threshold: 70, Critical: true}},
			After:      []model.UsageReport{{Path: "/docker", UsedPercent: 40, Threshold: 70}},
			Prunes:     []model.PruneReport{{Resource: model.ResourceImages, ItemsDeleted: 3, SpaceReclaimed: 2_000_000_000}},
		}))
		require.NoError(t, store.Close())

		out, err := runRoot(t, "history", "--history-db", dbPath, "--json")
		require.NoError(t, err)

		var entries []history.Entry
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionCleaned, entries[0].Action)
		assert.Equal(t, uint64(2_000_000_000), entries[0].ReclaimedBytes)

		out, err = runRoot(t, "history", "--history-db", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "/docker=91%")
		assert.Contains(t, out, "2.0 GB")
	})
}

func TestCleanupTargets(t *testing.T) {
	assert.Equal(t, monitor.Targets{Docker: true, Workspace: true}, cleanupTargets(false, false))
	assert.Equal(t, monitor.Targets{Docker: true}, cleanupTargets(true, false))
	assert.Equal(t, monitor.Targets{Workspace: true}, cleanupTargets(false, true))
	assert.Equal(t, monitor.Targets{Docker: true, Workspace: true}, cleanupTargets(true, true))
}

func TestCleanupOutcome(t *testing.T) {
	tests := []struct {
		name     string
		res      model.CycleResult
		wantCode model.ExitCode
		wantErr  bool
	}{
		{
			name: "cleaned",
			res:  model.CycleResult{Action: model.ActionCleaned},
		},
		{
			name:     "skipped because node busy",
			res:      model.CycleResult{Action: model.ActionSkipped},
			wantCode: model.ExitControllerError,
			wantErr:  true,
		},
		{
			name:     "skipped because controller failed",
			res:      model.CycleResult{Action: model.ActionSkipped, Err: errors.New("connection refused")},
			wantCode: model.ExitControllerError,
			wantErr:  true,
		},
		{
			name:     "cleaned with errors",
			res:      model.CycleResult{Action: model.ActionCleaned, Err: errors.New("prune failed")},
			wantCode: model.ExitGeneralError,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cleanupOutcome(tt.res)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, tt.wantCode, cliErr.Code)
		})
	}
}

func TestRenderUsageTable(t *testing.T) {
	var buf bytes.Buffer
	err := renderUsageTable(&buf, []model.UsageReport{
		{Path: "/docker", UsedBytes: 71_000_000_000, TotalBytes: 100_000_000_000, UsedPercent: 71, Threshold: 70, Critical: true},
		{Path: "/workspace", UsedBytes: 5_000_000_000, TotalBytes: 100_000_000_000, UsedPercent: 5, Threshold: 70},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "/docker")
	assert.Contains(t, out, "71%")
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "/workspace")
	assert.Contains(t, out, "71 GB")
}

func TestPrintCycleSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printCycleSummary(&buf, model.CycleResult{
		StartedAt:        start,
		FinishedAt:       start.Add(1500 * time.Millisecond),
		Action:           model.ActionCleaned,
		Prunes:           []model.PruneReport{{Resource: model.ResourceVolumes, ItemsDeleted: 2, SpaceReclaimed: 1000}},
		WorkspaceCleaned: true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Action: cleaned", lines[0])
	assert.Contains(t, buf.String(), "Pruned volumes: 2 deleted, 1.0 kB reclaimed")
	assert.Contains(t, buf.String(), "Workspace emptied")
	assert.Contains(t, buf.String(), "Total reclaimed: 1.0 kB in 1.5s")
}

func TestFormatUsageList(t *testing.T) {
	assert.Equal(t, "-", formatUsageList(nil))
	assert.Equal(t, "/docker=71% /workspace=5%", formatUsageList([]model.UsageReport{
		{Path: "/docker", UsedPercent: 71},
		{Path: "/workspace", UsedPercent: 5},
	}))
}

// stubLoop replaces the monitoring loop for the duration of the test and
// returns a pointer to the app it was called with.
func stubLoop(t *testing.T, err error) **app {
	t.Helper()
	var got *app
	orig := loop
	t.Cleanup(func() { loop = orig })
	loop = func(ctx context.Context, a *app) error {
		got = a
		return err
	}
	return &got
}

func TestRootWithoutArgumentsRunsLoop(t *testing.T) {
	clearEnv(t)
	got := stubLoop(t, nil)

	_, err := runRoot(t)
	require.NoError(t, err)

	require.NotNil(t, *got, "the container entrypoint passes no arguments")
	require.NotNil(t, (*got).cfg)
	assert.Equal(t, 70, (*got).cfg.Disk.Threshold)
	assert.NotNil(t, (*got).log)
}

func TestRunCommandRunsLoop(t *testing.T) {
	clearEnv(t)
	got := stubLoop(t, nil)

	_, err := runRoot(t, "run", "--interval", "15")
	require.NoError(t, err)

	require.NotNil(t, *got)
	assert.Equal(t, 15, (*got).cfg.Check.Interval)
}

func TestExecuteExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		loopErr error
		want    model.ExitCode
	}{
		{name: "success", want: model.ExitSuccess},
		{name: "cli error keeps its code", loopErr: model.NewCLIError(model.ExitDockerNotRunning, "docker down"), want: model.ExitDockerNotRunning},
		{name: "plain error is general", loopErr: errors.New("boom"), want: model.ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			stubLoop(t, tt.loopErr)
			jsonOutput, verbose, cfgFile = false, false, ""

			root := NewRootCommand()
			root.SetArgs([]string{})
			root.SetOut(&bytes.Buffer{})
			assert.Equal(t, tt.want, Execute(context.Background(), root))
		})
	}

	t.Run("invalid configuration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CHECK_INTERVAL", "0")
		stubLoop(t, nil)
		jsonOutput, verbose, cfgFile = false, false, ""

		root := NewRootCommand()
		root.SetArgs([]string{})
		assert.Equal(t, model.ExitConfigInvalid, Execute(context.Background(), root))
	})
}
