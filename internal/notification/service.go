package notification

import (
	"context"
	"time"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const componentNotification = "notification"

// Service fans notifications out to its providers.
type Service struct {
	providers []Provider
	timeout   time.Duration
	metrics   *metrics.NotificationMetrics
	log       logger.Logger
}

// NewService creates a notification service. metrics may be nil.
func NewService(providers []Provider, timeout time.Duration, m *metrics.NotificationMetrics, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global().Module(componentNotification)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{providers: providers, timeout: timeout, metrics: m, log: log}
}

// NewFromSettings returns a Service backed by shoutrrr when notifications are
// enabled, and Noop otherwise.
func NewFromSettings(settings *conf.Settings, m *metrics.NotificationMetrics, log logger.Logger) (Notifier, error) {
	if !settings.Notification.Enabled {
		return Noop{}, nil
	}
	provider, err := NewShoutrrrProvider(settings.Notification.URLs, settings.Notification.Timeout)
	if err != nil {
		return nil, err
	}
	return NewService([]Provider{provider}, settings.Notification.Timeout, m, log), nil
}

// NotifyJob implements Notifier.
func (s *Service) NotifyJob(ctx context.Context, outcome JobOutcome) error {
	return s.Send(ctx, jobNotification(outcome))
}

// Send delivers n through every provider and returns the joined errors.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var errs []error
	for _, p := range s.providers {
		err := p.Send(ctx, n)
		s.metrics.RecordSend(err)
		if err != nil {
			s.log.Warn("notification delivery failed",
				logger.String("provider", p.Name()),
				logger.String("type", string(n.Type)),
				logger.Error(err))
			errs = append(errs, err)
			continue
		}
		s.log.Debug("notification delivered",
			logger.String("provider", p.Name()),
			logger.String("type", string(n.Type)))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component(componentNotification).
		Category(errors.CategoryNotification).
		Build()
}
