// File: observability/prometheus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-jobs/internal/scheduler"
)

const namespace = "hioload_jobs"

// StatsSource provides pool snapshots.
type StatsSource interface {
	Stats() scheduler.Stats
}

// Collector exposes a StatsSource as Prometheus metrics, reading one
// snapshot per scrape.
type Collector struct {
	src StatsSource

	submitted   *prometheus.Desc
	completed   *prometheus.Desc
	failed      *prometheus.Desc
	cancelled   *prometheus.Desc
	stolen      *prometheus.Desc
	outstanding *prometheus.Desc
	groupQueued *prometheus.Desc
	workerRuns  *prometheus.Desc
	workerQueue *prometheus.Desc
	workerIdle  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over src. constLabels are attached to
// every metric, typically the pool id.
func NewCollector(src StatsSource, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}
	return &Collector{
		src:         src,
		submitted:   desc("jobs_submitted_total", "Jobs accepted by the pool."),
		completed:   desc("jobs_completed_total", "Jobs that completed."),
		failed:      desc("jobs_failed_total", "Jobs whose payload failed or panicked."),
		cancelled:   desc("jobs_cancelled_total", "Jobs cancelled before they ran."),
		stolen:      desc("jobs_stolen_total", "Jobs executed by a worker other than their queue owner."),
		outstanding: desc("jobs_outstanding", "Accepted jobs not yet terminal."),
		groupQueued: desc("group_queued_jobs", "Jobs queued for a worker group.", "group"),
		workerRuns:  desc("worker_executed_total", "Jobs executed by a worker.", "worker"),
		workerQueue: desc("worker_queued_jobs", "Jobs queued on a worker.", "worker"),
		workerIdle:  desc("worker_idle", "1 when the worker is parked.", "worker"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.submitted, c.completed, c.failed, c.cancelled, c.stolen,
		c.outstanding, c.groupQueued, c.workerRuns, c.workerQueue, c.workerIdle,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.Submitted))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(s.Completed))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(s.Cancelled))
	ch <- prometheus.MustNewConstMetric(c.stolen, prometheus.CounterValue, float64(s.Stolen))
	ch <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(s.Outstanding))
	for _, g := range s.Groups {
		ch <- prometheus.MustNewConstMetric(c.groupQueued, prometheus.GaugeValue, float64(g.Queued), g.Name)
	}
	for _, w := range s.Workers {
		id := strconv.Itoa(w.ID)
		idle := 0.0
		if w.Idle {
			idle = 1
		}
		ch <- prometheus.MustNewConstMetric(c.workerRuns, prometheus.CounterValue, float64(w.Executed), id)
		ch <- prometheus.MustNewConstMetric(c.workerQueue, prometheus.GaugeValue, float64(w.Queued), id)
		ch <- prometheus.MustNewConstMetric(c.workerIdle, prometheus.GaugeValue, idle, id)
	}
}
