package web

import (
	"time"

	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/prometheus/client_golang/prometheus"
)

// taskCollector reports collection sizes at scrape time.
type taskCollector struct {
	store *db.Store
	now   func() time.Time
	tasks *prometheus.Desc
}

func newTaskCollector(store *db.Store, now func() time.Time) *taskCollector {
	return &taskCollector{
		store: store,
		now:   now,
		tasks: prometheus.NewDesc(
			"lazytodo_tasks",
			"Tasks in the collection, by state.",
			[]string{"state"}, nil,
		),
	}
}

func (c *taskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasks
}

func (c *taskCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.store.Stats(c.now())
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.GaugeValue, float64(stats.Total-stats.Completed), "active")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.GaugeValue, float64(stats.Completed), "completed")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.GaugeValue, float64(stats.Upcoming), "upcoming")
	ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.GaugeValue, float64(stats.HighPriority), "high_priority")
}
