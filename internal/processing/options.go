package processing

import (
	"time"

	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

// Option configures the processing services
type Option func(*options)

type options struct {
	log              logger.Logger
	metrics          *metrics.PipelineMetrics
	events           events.Publisher
	maxBookTextBytes int
	now              func() time.Time
}

// WithLogger sets the logger. Defaults to the global "processing" module.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics sets the pipeline metrics collector
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEvents sets the publisher for pipeline events
func WithEvents(p events.Publisher) Option {
	return func(o *options) { o.events = p }
}

// WithMaxBookTextBytes bounds aggregated book text. Zero means unbounded.
func WithMaxBookTextBytes(n int) Option {
	return func(o *options) { o.maxBookTextBytes = n }
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		events: events.Noop{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Global().Module(componentProcessing)
	}
	if o.events == nil {
		o.events = events.Noop{}
	}
	return o
}
