package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for one pool. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    *prometheus.CounterVec
	JobsDropped   prometheus.Counter
	BusyWorkers   prometheus.Gauge
	JobLatency    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs whose body returned without error",
		}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_failures_total",
			Help:      "Total number of captured job failures by kind",
		}, []string{"kind"}),
		JobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_dropped_total",
			Help:      "Total number of queued jobs discarded at shutdown",
		}),
		BusyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "busy_workers",
			Help:      "Current number of workers running a job",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_latency_seconds",
			Help:      "Histogram of job execution latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.JobsSubmitted,
			m.JobsCompleted,
			m.JobsFailed,
			m.JobsDropped,
			m.BusyWorkers,
			m.JobLatency,
		)
	}
	return m
}

func (m *Metrics) submitted() {
	if m != nil {
		m.JobsSubmitted.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.JobsDropped.Inc()
	}
}

func (m *Metrics) failed(kind string) {
	if m != nil {
		m.JobsFailed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) started() {
	if m != nil {
		m.BusyWorkers.Inc()
	}
}

func (m *Metrics) finished(start time.Time, ok bool) {
	if m == nil {
		return
	}
	m.BusyWorkers.Dec()
	m.JobLatency.Observe(time.Since(start).Seconds())
	if ok {
		m.JobsCompleted.Inc()
	}
}
