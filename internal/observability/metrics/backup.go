package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackupMetrics tracks entity store backups.
type BackupMetrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	archiveBytes     prometheus.Gauge
	lastSuccess      prometheus.Gauge
	duration         prometheus.Histogram
	targetStoreTotal *prometheus.CounterVec
}

// NewBackupMetrics creates and registers backup metrics.
func NewBackupMetrics(registry *prometheus.Registry) (*BackupMetrics, error) {
	m := &BackupMetrics{registry: registry}
	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_backup_runs_total",
		Help: "Backup runs by outcome",
	}, []string{"result"})
	m.archiveBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naskban_backup_archive_bytes",
		Help: "Size of the most recent backup archive",
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "naskban_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last backup stored on every target",
	})
	m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "naskban_backup_duration_seconds",
		Help:    "Time taken by a backup run",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	m.targetStoreTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_backup_target_stores_total",
		Help: "Archive uploads by target and outcome",
	}, []string{"target", "result"})

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register backup metrics: %w", err)
	}
	return m, nil
}

// RecordRun records a finished backup run.
func (m *BackupMetrics) RecordRun(d time.Duration, size int64, err error) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(resultLabel(err)).Inc()
	m.duration.Observe(d.Seconds())
	if err == nil {
		m.archiveBytes.Set(float64(size))
		m.lastSuccess.SetToCurrentTime()
	}
}

// RecordStore records one archive upload.
func (m *BackupMetrics) RecordStore(target string, err error) {
	if m == nil {
		return
	}
	m.targetStoreTotal.WithLabelValues(target, resultLabel(err)).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *BackupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.archiveBytes.Describe(ch)
	m.lastSuccess.Describe(ch)
	m.duration.Describe(ch)
	m.targetStoreTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *BackupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.archiveBytes.Collect(ch)
	m.lastSuccess.Collect(ch)
	m.duration.Collect(ch)
	m.targetStoreTotal.Collect(ch)
}
