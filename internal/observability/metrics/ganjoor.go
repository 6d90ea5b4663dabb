package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GanjoorMetrics contains Prometheus metrics for the external poem corpus
// client.
type GanjoorMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// NewGanjoorMetrics creates and registers corpus client metrics.
func NewGanjoorMetrics(registry *prometheus.Registry) (*GanjoorMetrics, error) {
	m := &GanjoorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Ganjoor metrics: %w", err)
	}
	return m, nil
}

func (m *GanjoorMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_ganjoor_requests_total",
		Help: "Requests sent to the Ganjoor API by endpoint and status",
	}, []string{"endpoint", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "naskban_ganjoor_request_duration_seconds",
		Help:    "Duration of Ganjoor API requests",
		Buckets: externalDurationBuckets,
	}, []string{"endpoint"})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_ganjoor_cache_lookups_total",
		Help: "Corpus metadata cache lookups by endpoint and result",
	}, []string{"endpoint", "result"})
}

// RecordRequest records a completed request. status is the HTTP status code
// as text, or "error" for transport failures.
func (m *GanjoorMetrics) RecordRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(seconds(d))
}

// RecordCacheLookup records a metadata cache hit or miss.
func (m *GanjoorMetrics) RecordCacheLookup(endpoint string, hit bool) {
	if m == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *GanjoorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.cacheLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *GanjoorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.cacheLookups.Collect(ch)
}
