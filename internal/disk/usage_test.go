package disk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUsage returns a UsageFunc that reports fixed statistics per path.
func fakeUsage(stats map[string]*disk.UsageStat) UsageFunc {
	return func(_ context.Context, path string) (*disk.UsageStat, error) {
		s, ok := stats[path]
		if !ok {
			return nil, errors.New("no such file or directory")
		}
		return s, nil
	}
}

func TestUsedPercent(t *testing.T) {
	tests := []struct {
		name  string
		used  uint64
		total uint64
		want  int
	}{
		{"empty", 0, 1000, 0},
		{"exact", 700, 1000, 70},
		{"rounds up", 701, 1000, 71},
		{"tiny usage rounds to one", 1, 1000, 1},
		{"full", 1000, 1000, 100},
		{"clamped", 1200, 1000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsedPercent(tt.used, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := UsedPercent(0, 0)
	assert.Error(t, err)
}

func TestChecker_Check(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := NewCheckerWithUsage(fakeUsage(map[string]*disk.UsageStat{
		"/docker":    {Total: 1000, Used: 700, Free: 250},
		"/workspace": {Total: 1000, Used: 300, Free: 650},
	}), logger)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	t.Run("at threshold is critical", func(t *testing.T) {
		hook.Reset()
		r, err := c.Check(context.Background(), "/docker", 70)
		require.NoError(t, err)

		assert.Equal(t, 70, r.UsedPercent)
		assert.True(t, r.Critical)
		assert.Equal(t, uint64(1000), r.TotalBytes)
		assert.Equal(t, uint64(250), r.FreeBytes)
		assert.Equal(t, fixed, r.CheckedAt)

		require.Len(t, hook.Entries, 1)
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
		assert.Equal(t, "disk usage of /docker: ~70% [threshold: 70%]", hook.LastEntry().Message)
		assert.Equal(t, true, hook.LastEntry().Data["critical"])
	})

	t.Run("below threshold is info", func(t *testing.T) {
		hook.Reset()
		r, err := c.Check(context.Background(), "/workspace", 70)
		require.NoError(t, err)

		assert.False(t, r.Critical)
		require.Len(t, hook.Entries, 1)
		assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := c.Check(context.Background(), "/missing", 70)
		assert.ErrorContains(t, err, "/missing")
	})
}

func TestChecker_CheckAll(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewCheckerWithUsage(fakeUsage(map[string]*disk.UsageStat{
		"/a": {Total: 100, Used: 10},
		"/b": {Total: 100, Used: 90},
	}), logger)

	reports, err := c.CheckAll(context.Background(), []string{"/a", "/b"}, 50)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "/a", reports[0].Path)
	assert.False(t, reports[0].Critical)
	assert.True(t, reports[1].Critical)

	reports, err = c.CheckAll(context.Background(), []string{"/a", "/nope", "/b"}, 50)
	assert.Error(t, err)
	assert.Len(t, reports, 1, "reports gathered before the failure are returned")
}

// TestChecker_RealFilesystem exercises the gopsutil path against the test's
// temporary directory, which always lives on a real filesystem.
func TestChecker_RealFilesystem(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewChecker(logger)

	r, err := c.Check(context.Background(), t.TempDir(), 100)
	require.NoError(t, err)
	assert.Greater(t, r.TotalBytes, uint64(0))
	assert.GreaterOrEqual(t, r.UsedPercent, 0)
	assert.LessOrEqual(t, r.UsedPercent, 100)
}
