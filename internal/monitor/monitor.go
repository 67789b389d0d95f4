// Package monitor runs the node-janitor check/cleanup loop.
//
// A cycle measures the Docker data root and the CI workspace root. When
// either is at or above the threshold, the node is drained (taken offline
// if idle), the critical filesystems are cleaned, usage is measured again,
// and the node is brought back online. Cycles repeat every interval until
// the context is cancelled.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shinji-kodama/node-janitor/internal/jenkins"
	"github.com/shinji-kodama/node-janitor/internal/model"
)

// offlineReason is shown on the node page in Jenkins while cleanup runs.
const offlineReason = "node-janitor: disk cleanup in progress"

// DiskChecker measures filesystem usage.
type DiskChecker interface {
	Check(ctx context.Context, path string, threshold int) (model.UsageReport, error)
}

// DockerCleaner reclaims space held by Docker.
type DockerCleaner interface {
	Cleanup(ctx context.Context) ([]model.PruneReport, error)
}

// WorkspaceCleaner wipes a workspace root.
type WorkspaceCleaner interface {
	Clean(root string) (int, error)
}

// Observer receives every finished cycle. Metrics and history implement it.
type Observer interface {
	ObserveCycle(ctx context.Context, res model.CycleResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res model.CycleResult)

// ObserveCycle calls f.
func (f ObserverFunc) ObserveCycle(ctx context.Context, res model.CycleResult) {
	f(ctx, res)
}

// Config holds the loop parameters.
type Config struct {
	DockerRoot    string
	WorkspaceRoot string
	Threshold     int
	Interval      time.Duration
}

// Monitor owns the loop and its collaborators.
type Monitor struct {
	cfg       Config
	disk      DiskChecker
	docker    DockerCleaner
	workspace WorkspaceCleaner
	node      jenkins.NodeController
	observers []Observer
	log       logrus.FieldLogger
	now       func() time.Time
}

// New wires a Monitor. Observers may be added with AddObserver.
func New(cfg Config, disk DiskChecker, docker DockerCleaner, ws WorkspaceCleaner, node jenkins.NodeController, log logrus.FieldLogger) *Monitor {
	return &Monitor{
		cfg:       cfg,
		disk:      disk,
		docker:    docker,
		workspace: ws,
		node:      node,
		log:       log,
		now:       time.Now,
	}
}

// AddObserver registers o to receive every finished cycle.
func (m *Monitor) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Targets selects which filesystems a forced cleanup touches.
type Targets struct {
	Docker    bool
	Workspace bool
}

// RunOnce performs a single check cycle, cleaning up if needed.
//
// Result.Err is set only for failures that make the measurement itself
// unreliable (a path cannot be measured). Cleanup failures are logged and
// recorded in the result but leave Err nil when measurement succeeded, so
// the loop keeps running.
func (m *Monitor) RunOnce(ctx context.Context) model.CycleResult {
	res := model.CycleResult{StartedAt: m.now(), Action: model.ActionNone}
	defer m.finish(ctx, &res)

	m.log.Info("***** checking disk usage *****")
	before, err := m.checkBoth(ctx)
	res.Before = before
	if err != nil {
		res.Err = err
		return res
	}

	targets := Targets{Docker: before[0].Critical, Workspace: before[1].Critical}
	if !targets.Docker && !targets.Workspace {
		return res
	}

	m.cleanup(ctx, targets, &res)
	return res
}

// ForceCleanup runs the cleanup sequence for the given targets without
// consulting the threshold.
func (m *Monitor) ForceCleanup(ctx context.Context, targets Targets) model.CycleResult {
	res := model.CycleResult{StartedAt: m.now(), Action: model.ActionNone}
	defer m.finish(ctx, &res)

	before, err := m.checkBoth(ctx)
	res.Before = before
	if err != nil {
		res.Err = err
		return res
	}

	m.cleanup(ctx, targets, &res)
	return res
}

// cleanup drains the node, cleans the selected targets, re-measures and
// restores the node. The node is always brought back online once it was
// taken offline, even when a cleanup step fails.
func (m *Monitor) cleanup(ctx context.Context, targets Targets, res *model.CycleResult) {
	m.log.Info("starting cleanup operations")

	offline, err := m.node.TakeOffline(ctx, offlineReason)
	if err != nil {
		m.log.WithError(err).Error("failed to take node offline")
		res.Err = &cleanupError{err: err}
	}
	if !offline {
		m.log.Warn("skipping cleanup")
		res.Action = model.ActionSkipped
		return
	}

	res.Action = model.ActionCleaned
	var cleanupErrs []error

	if targets.Docker {
		prunes, err := m.docker.Cleanup(ctx)
		res.Prunes = prunes
		if err != nil {
			m.log.WithError(err).Error("docker cleanup failed")
			cleanupErrs = append(cleanupErrs, err)
		}
	}
	if targets.Workspace {
		if _, err := m.workspace.Clean(m.cfg.WorkspaceRoot); err != nil {
			m.log.WithError(err).Error("workspace cleanup failed")
			cleanupErrs = append(cleanupErrs, err)
		} else {
			res.WorkspaceCleaned = true
		}
	}

	m.log.Info("disk usage after cleanup:")
	after, err := m.checkBoth(ctx)
	res.After = after
	if err != nil {
		m.log.WithError(err).Error("failed to re-check disk usage")
	}
	m.log.Info("finished all cleanup operations")

	// Restore scheduling even if ctx was cancelled mid-cleanup; leaving the
	// node offline would silently shrink the build fleet.
	restoreCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		restoreCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
	}
	if err := m.node.BringOnline(restoreCtx); err != nil {
		m.log.WithError(err).Error("failed to bring node back online")
		cleanupErrs = append(cleanupErrs, err)
	}

	if len(cleanupErrs) > 0 {
		res.Err = &cleanupError{err: errors.Join(cleanupErrs...)}
	}
}

func (m *Monitor) checkBoth(ctx context.Context) ([]model.UsageReport, error) {
	reports := make([]model.UsageReport, 0, 2)
	for _, p := range []string{m.cfg.DockerRoot, m.cfg.WorkspaceRoot} {
		r, err := m.disk.Check(ctx, p, m.cfg.Threshold)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (m *Monitor) finish(ctx context.Context, res *model.CycleResult) {
	res.FinishedAt = m.now()
	for _, o := range m.observers {
		o.ObserveCycle(ctx, *res)
	}
}

// Run repeats RunOnce every interval until ctx is cancelled.
//
// It returns nil when stopped through ctx. A cycle whose disk check fails
// ends the loop with that error, so the process (and its container) exits
// non-zero instead of reporting healthy while blind.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		return fmt.Errorf("invalid check interval %s", m.cfg.Interval)
	}

	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	for {
		res := m.RunOnce(ctx)
		if ctx.Err() != nil {
			m.log.Info("stopping")
			return nil
		}
		if res.Err != nil && !IsCleanupError(res.Err) {
			m.log.WithError(res.Err).Error("monitoring cycle failed")
			return res.Err
		}

		m.log.Infof("***** checking again after %s *****", describeInterval(m.cfg.Interval))
		resetTimer(timer, m.cfg.Interval)
		select {
		case <-ctx.Done():
			m.log.Info("stopping")
			return nil
		case <-timer.C:
		}
	}
}

// resetTimer drains a fired or pending timer before rearming it.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// describeInterval renders the interval the way operators configure it.
func describeInterval(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d minute(s)", int(d/time.Minute))
	}
	return d.String()
}

// cleanupError marks failures that happened during cleanup rather than
// measurement. The loop logs these and carries on.
type cleanupError struct {
	err error
}

func (e *cleanupError) Error() string { return e.err.Error() }
func (e *cleanupError) Unwrap() error { return e.err }

// IsCleanupError reports whether err came from a cleanup step.
func IsCleanupError(err error) bool {
	var ce *cleanupError
	return errors.As(err, &ce)
}
