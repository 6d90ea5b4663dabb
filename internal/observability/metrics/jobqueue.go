package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobQueueMetrics tracks the background work pool.
type JobQueueMetrics struct {
	registry *prometheus.Registry

	submittedTotal *prometheus.CounterVec
	completedTotal *prometheus.CounterVec
	running        prometheus.Gauge
	jobDuration    *prometheus.HistogramVec
}

// NewJobQueueMetrics creates and registers job queue metrics.
func NewJobQueueMetrics(registry *prometheus.Registry) (*JobQueueMetrics, error) {
	m := &JobQueueMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register job queue metrics: %w", err)
	}
	return m, nil
}

func (m *JobQueueMetrics) initMetrics() {
	m.submittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_jobqueue_submitted_total",
		Help: "Background work submissions by job name and whether they were accepted",
	}, []string{"job", "result"})

	m.completedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_jobqueue_completed_total",
		Help: "Finished background work by job name and outcome",
	}, []string{"job", "result"})

	m.running = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naskban_jobqueue_running",
		Help: "Background work items currently executing",
	})

	m.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "naskban_jobqueue_duration_seconds",
		Help:    "Duration of background work",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
	}, []string{"job"})
}

// RecordSubmit records a submission attempt.
func (m *JobQueueMetrics) RecordSubmit(job string, err error) {
	if m == nil {
		return
	}
	m.submittedTotal.WithLabelValues(job, resultLabel(err)).Inc()
}

// JobStarted marks a work item as running.
func (m *JobQueueMetrics) JobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

// JobFinished records a finished work item.
func (m *JobQueueMetrics) JobFinished(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.completedTotal.WithLabelValues(job, resultLabel(err)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(seconds(d))
}

// Describe implements the prometheus.Collector interface.
func (m *JobQueueMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.submittedTotal.Describe(ch)
	m.completedTotal.Describe(ch)
	m.running.Describe(ch)
	m.jobDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *JobQueueMetrics) Collect(ch chan<- prometheus.Metric) {
	m.submittedTotal.Collect(ch)
	m.completedTotal.Collect(ch)
	m.running.Collect(ch)
	m.jobDuration.Collect(ch)
}
