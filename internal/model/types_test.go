package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCycleAction_String verifies that CycleAction values produce
// the expected string representations for logs, metrics labels and history.
func TestCycleAction_String(t *testing.T) {
	tests := []struct {
		action   CycleAction
		expected string
	}{
		{ActionNone, "none"},
		{ActionCleaned, "cleaned"},
		{ActionSkipped, "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.action.String())
		})
	}
}

// TestParseCycleAction verifies string-to-action conversion,
// including case normalization and error cases.
func TestParseCycleAction(t *testing.T) {
	tests := []struct {
		input    string
		expected CycleAction
		hasError bool
	}{
		{"none", ActionNone, false},
		{"cleaned", ActionCleaned, false},
		{"Skipped", ActionSkipped, false}, // case insensitive
		{"pruned", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseCycleAction(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestUsageReport_String checks the log line format. Operators grep for
// this exact shape, so it must stay stable.
func TestUsageReport_String(t *testing.T) {
	r := UsageReport{Path: "/docker", UsedPercent: 71, Threshold: 70}
	assert.Equal(t, "disk usage of /docker: ~71% [threshold: 70%]", r.String())
}

func TestCycleResult_Aggregates(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := CycleResult{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Prunes: []PruneReport{
			{Resource: ResourceContainers, SpaceReclaimed: 100},
			{Resource: ResourceVolumes, SpaceReclaimed: 0},
			{Resource: ResourceImages, SpaceReclaimed: 2048},
		},
	}

	assert.Equal(t, 90*time.Second, r.Duration())
	assert.Equal(t, uint64(2148), r.SpaceReclaimed())
}

func TestAnyCritical(t *testing.T) {
	assert.False(t, AnyCritical(nil))
	assert.False(t, AnyCritical([]UsageReport{{Critical: false}, {Critical: false}}))
	assert.True(t, AnyCritical([]UsageReport{{Critical: false}, {Critical: true}}))
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitDiskCritical, "disk usage critical")
		assert.Equal(t, ExitDiskCritical, err.Code)
		assert.Equal(t, "disk usage critical", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not responding", inner)
		assert.Equal(t, ExitDockerNotRunning, err.Code)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, inner, err.Unwrap())
	})

	// errors.As must find the CLIError through fmt.Errorf wrapping, because
	// the command layer relies on it to pick the exit code.
	t.Run("errors.As through wrapping", func(t *testing.T) {
		base := WrapCLIError(ExitControllerError, "toggle failed", errors.New("403"))
		wrapped := fmt.Errorf("cycle: %w", base)

		var cliErr *CLIError
		require.True(t, errors.As(wrapped, &cliErr))
		assert.Equal(t, ExitControllerError, cliErr.Code)
	})
}
