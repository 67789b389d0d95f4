// Package metrics exposes node-janitor state to Prometheus.
//
// All collectors live on a private registry rather than the global default
// one, so tests can create as many Recorders as they like without
// duplicate-registration panics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shinji-kodama/node-janitor/internal/model"
)

const namespace = "node_janitor"

// Recorder updates Prometheus collectors from cycle results.
type Recorder struct {
	registry *prometheus.Registry

	diskUsedPercent   *prometheus.GaugeVec
	diskCritical      *prometheus.GaugeVec
	cycles            *prometheus.CounterVec
	spaceReclaimed    *prometheus.CounterVec
	workspaceCleanups prometheus.Counter
	lastCycle         prometheus.Gauge
	cycleDuration     prometheus.Histogram
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		diskUsedPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "disk_used_percent",
				Help:      "Used space of the monitored filesystem, percent rounded up",
			},
			[]string{"path"},
		),
		diskCritical: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "disk_critical",
				Help:      "1 if the monitored filesystem is at or above its threshold",
			},
			[]string{"path"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Monitoring cycles by outcome",
			},
			[]string{"action"},
		),
		spaceReclaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "space_reclaimed_bytes_total",
				Help:      "Bytes reclaimed by Docker prune calls",
			},
			[]string{"resource"},
		),
		workspaceCleanups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workspace_cleanups_total",
				Help:      "Number of times the workspace root was wiped",
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time the last monitoring cycle finished",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of monitoring cycles",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
	}

	r.registry.MustRegister(
		r.diskUsedPercent,
		r.diskCritical,
		r.cycles,
		r.spaceReclaimed,
		r.workspaceCleanups,
		r.lastCycle,
		r.cycleDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry returns the registry holding the janitor's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveUsage updates the per-path gauges.
func (r *Recorder) ObserveUsage(reports []model.UsageReport) {
	for _, u := range reports {
		r.diskUsedPercent.WithLabelValues(u.Path).Set(float64(u.UsedPercent))
		critical := 0.0
		if u.Critical {
			critical = 1
		}
		r.diskCritical.WithLabelValues(u.Path).Set(critical)
	}
}

// ObserveCycle records a finished cycle. The gauges reflect the latest
// measurement: the post-cleanup one when cleanup ran.
func (r *Recorder) ObserveCycle(res model.CycleResult) {
	r.ObserveUsage(res.Before)
	r.ObserveUsage(res.After)

	r.cycles.WithLabelValues(res.Action.String()).Inc()
	for _, p := range res.Prunes {
		r.spaceReclaimed.WithLabelValues(p.Resource.String()).Add(float64(p.SpaceReclaimed))
	}
	if res.WorkspaceCleaned {
		r.workspaceCleanups.Inc()
	}

	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.lastCycle.Set(float64(finished.Unix()))
	if !res.StartedAt.IsZero() {
		r.cycleDuration.Observe(res.Duration().Seconds())
	}
}
