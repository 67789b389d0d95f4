// wiring.go assembles the monitor and its collaborators from
// the resolved configuration. Commands share it so "run" and "cleanup"
// behave identically.
package cli

import (
	"context"

	"github.com/shinji-kodama/node-janitor/internal/disk"
	"github.com/shinji-kodama/node-janitor/internal/docker"
	"github.com/shinji-kodama/node-janitor/internal/history"
	"github.com/shinji-kodama/node-janitor/internal/jenkins"
	"github.com/shinji-kodama/node-janitor/internal/metrics"
	"github.com/shinji-kodama/node-janitor/internal/model"
	"github.com/shinji-kodama/node-janitor/internal/monitor"
	"github.com/shinji-kodama/node-janitor/internal/workspace"
)

// deps holds the components built for one command invocation.
type deps struct {
	monitor  *monitor.Monitor
	recorder *metrics.Recorder // nil when metrics are disabled
	closers  []func() error
}

// Close releases everything in reverse creation order.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

// buildDeps wires the monitor. withMetrics controls whether a Prometheus
// recorder is attached; one-shot commands leave it off.
func buildDeps(a *app, withMetrics bool) (*deps, error) {
	cfg := a.cfg
	d := &deps{}

	dockerClient, err := docker.NewClient(cfg.Docker.Host)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, dockerClient.Close)
	a.log.WithField("host", dockerClient.Host()).Debug("docker client created")

	node, err := newNodeController(a)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.monitor = monitor.New(
		monitor.Config{
			DockerRoot:    cfg.Docker.RootDir,
			WorkspaceRoot: cfg.Workspace.RootDir,
			Threshold:     cfg.Disk.Threshold,
			Interval:      cfg.Check.IntervalDuration(),
		},
		disk.NewChecker(a.log),
		&docker.Cleaner{
			Client: dockerClient,
			Options: docker.PruneOptions{
				KeepImagesUntil: cfg.Docker.KeepImagesUntil,
				KeepLabel:       cfg.Docker.KeepLabel,
			},
			Log: a.log,
		},
		workspace.NewCleaner(a.log),
		node,
		a.log,
	)

	if withMetrics && cfg.Metrics.Addr != "" {
		d.recorder = metrics.NewRecorder()
		rec := d.recorder
		d.monitor.AddObserver(monitor.ObserverFunc(func(_ context.Context, res model.CycleResult) {
			rec.ObserveCycle(res)
		}))
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			d.Close()
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "cannot open history database", err)
		}
		d.closers = append(d.closers, store.Close)
		log := a.log
		d.monitor.AddObserver(monitor.ObserverFunc(func(ctx context.Context, res model.CycleResult) {
			// A cancelled ctx would drop the final cycle of a shutdown.
			if err := store.Record(context.WithoutCancel(ctx), res); err != nil {
				log.WithError(err).Warn("failed to record cycle history")
			}
		}))
	}

	return d, nil
}

// newNodeController returns the Jenkins client, or Noop when no controller
// URL is configured.
func newNodeController(a *app) (jenkins.NodeController, error) {
	j := a.cfg.Jenkins
	if !j.Enabled() {
		a.log.Debug("no CI controller configured, node control disabled")
		return jenkins.Noop{Log: a.log}, nil
	}

	c, err := jenkins.NewClient(jenkins.Options{
		BaseURL: j.URL,
		User:    j.User,
		Token:   j.Pass,
		Node:    j.Node,
		Log:     a.log,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid Jenkins configuration", err)
	}
	return c, nil
}
