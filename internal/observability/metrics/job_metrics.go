package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonDBLockTimeout    = "db_lock_timeout"
	JobReasonUniqueViolation  = "unique_violation"
	JobReasonUnknown          = "unknown"
)

// JobMetrics instruments background jobs on the default prometheus registry.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	backlog  *prometheus.GaugeVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the process-wide job metrics, registering them on first use.
func Jobs() *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = &JobMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "confirmd_job_runs_total",
				Help: "Completed background job runs by job name.",
			}, []string{"job"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "confirmd_job_failures_total",
				Help: "Failed background job runs by job name and reason.",
			}, []string{"job", "reason"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "confirmd_job_duration_seconds",
				Help:    "Background job run duration.",
				Buckets: prometheus.DefBuckets,
			}, []string{"job"}),
			backlog: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "confirmd_job_backlog",
				Help: "Pending work items observed by a job, such as outbox rows.",
			}, []string{"job"}),
		}
		prometheus.MustRegister(jobMetrics.runs, jobMetrics.failures, jobMetrics.duration, jobMetrics.backlog)
	})
	return jobMetrics
}

// ObserveRun records a completed run and its duration.
func (m *JobMetrics) ObserveRun(job string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
	m.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if err != nil {
		m.failures.WithLabelValues(job, ClassifyJobError(err)).Inc()
	}
}

// SetBacklog records the pending item count a job observed.
func (m *JobMetrics) SetBacklog(job string, count float64) {
	if m == nil {
		return
	}
	m.backlog.WithLabelValues(job).Set(count)
}

// ClassifyJobError buckets a job failure into a low-cardinality reason.
func ClassifyJobError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return JobReasonDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01":
			return JobReasonDBLockTimeout
		case "23505":
			return JobReasonUniqueViolation
		}
	}
	return JobReasonUnknown
}
