package disk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/node-janitor/internal/model"
)

// UsageFunc returns filesystem statistics for path. gopsutil's
// disk.UsageWithContext satisfies it; tests substitute a fake.
type UsageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// Checker measures disk usage and logs each measurement.
type Checker struct {
	usage UsageFunc
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewChecker creates a Checker backed by gopsutil.
func NewChecker(log logrus.FieldLogger) *Checker {
	return NewCheckerWithUsage(disk.UsageWithContext, log)
}

// NewCheckerWithUsage creates a Checker with a custom statistics source.
func NewCheckerWithUsage(usage UsageFunc, log logrus.FieldLogger) *Checker {
	return &Checker{usage: usage, log: log, now: time.Now}
}

// Check measures path and compares it against threshold (a percentage).
//
// A critical measurement is logged at error level with critical=true so it
// stands out in aggregated logs; normal measurements are logged at info.
func (c *Checker) Check(ctx context.Context, path string, threshold int) (model.UsageReport, error) {
	stat, err := c.usage(ctx, path)
	if err != nil {
		return model.UsageReport{}, fmt.Errorf("failed to read disk usage of %s: %w", path, err)
	}

	pct, err := UsedPercent(stat.Used, stat.Total)
	if err != nil {
		return model.UsageReport{}, fmt.Errorf("disk usage of %s: %w", path, err)
	}

	report := model.UsageReport{
		Path:        path,
		TotalBytes:  stat.Total,
		UsedBytes:   stat.Used,
		FreeBytes:   stat.Free,
		UsedPercent: pct,
		Threshold:   threshold,
		Critical:    pct >= threshold,
		CheckedAt:   c.now(),
	}

	entry := c.log.WithFields(logrus.Fields{
		"path":      path,
		"used_pct":  pct,
		"threshold": threshold,
	})
	if report.Critical {
		entry.WithField("critical", true).Error(report.String())
	} else {
		entry.Info(report.String())
	}

	return report, nil
}

// CheckAll measures each path in order. It stops at the first error.
func (c *Checker) CheckAll(ctx context.Context, paths []string, threshold int) ([]model.UsageReport, error) {
	reports := make([]model.UsageReport, 0, len(paths))
	for _, p := range paths {
		r, err := c.Check(ctx, p, threshold)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// UsedPercent returns used/total as a whole percentage, rounded up.
// A zero total is reported as an error: pseudo filesystems such as proc
// report no blocks and cannot be meaningfully monitored.
func UsedPercent(used, total uint64) (int, error) {
	if total == 0 {
		return 0, fmt.Errorf("filesystem reports zero total size")
	}
	if used > total {
		used = total
	}
	return int(math.Ceil(float64(used) / float64(total) * 100)), nil
}
