package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics counts job outcome notifications.
type NotificationMetrics struct {
	registry *prometheus.Registry

	sentTotal *prometheus.CounterVec
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.sentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "naskban_notifications_sent_total",
		Help: "Notifications dispatched through shoutrrr by outcome",
	}, []string{"result"})
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordSend records a dispatch attempt.
func (m *NotificationMetrics) RecordSend(err error) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(resultLabel(err)).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sentTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sentTotal.Collect(ch)
}
