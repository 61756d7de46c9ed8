package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep outcomes reported by the stale order job.
const (
	SweepCanceled = "canceled"
	SweepSkipped  = "skipped"
	SweepFailed   = "failed"
)

// CronMetrics tracks scheduler cycles and what the jobs did to orders.
// A nil *CronMetrics is a valid no-op.
type CronMetrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	contended prometheus.Counter
	swept     *prometheus.CounterVec
}

// NewCronMetrics registers the scheduler metrics on reg.
func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return nil
	}
	c := &CronMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brewline_cron_job_runs_total",
			Help: "Scheduled job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brewline_cron_job_duration_seconds",
			Help:    "Duration of scheduled jobs in seconds.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
		}, []string{"job"}),
		contended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewline_cron_lock_contended_total",
			Help: "Cycles skipped because another worker held the scheduler lock.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brewline_cron_orders_swept_total",
			Help: "Stale PENDING orders handled by the order-ttl job, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.runs, c.duration, c.contended, c.swept)
	return c
}

// ObserveRun records one job execution; err decides the outcome label.
func (c *CronMetrics) ObserveRun(job string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.runs.WithLabelValues(job, outcome).Inc()
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
}

func (c *CronMetrics) IncLockContended() {
	if c == nil {
		return
	}
	c.contended.Inc()
}

// AddSwept counts n orders with the given sweep outcome.
func (c *CronMetrics) AddSwept(outcome string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.swept.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
