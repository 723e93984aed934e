package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweeperMetrics tracks background job runs.
type SweeperMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	affected *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	sweeperOnce sync.Once
	sweeper     *SweeperMetrics
)

// Sweeper returns the process-wide job collectors.
func Sweeper() *SweeperMetrics {
	sweeperOnce.Do(func() {
		sweeper = NewSweeperMetrics(prometheus.DefaultRegisterer)
	})
	return sweeper
}

// NewSweeperMetrics registers the job collectors on reg; nil skips registration.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	m := &SweeperMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gstbill_job_runs_total",
			Help: "Background job runs.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gstbill_job_errors_total",
			Help: "Background job failures.",
		}, []string{"job"}),
		affected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gstbill_job_rows_affected_total",
			Help: "Rows changed by background jobs.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gstbill_job_duration_seconds",
			Help:    "Background job duration.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.runs, m.errors, m.affected, m.duration} {
			_ = reg.Register(c)
		}
	}
	return m
}

func (m *SweeperMetrics) IncRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *SweeperMetrics) IncError(job string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(job).Inc()
}

func (m *SweeperMetrics) AddAffected(job string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.affected.WithLabelValues(job).Add(float64(n))
}

func (m *SweeperMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}
