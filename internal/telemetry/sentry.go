// Package telemetry wires opt-in error reporting to Sentry. Only
// infrastructure and external failures are reported (see
// errors.NewSentryReporter) and events are stripped of anything identifying
// the host or the reader before they leave the process.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const componentTelemetry = "telemetry"

// flushTimeout bounds how long Shutdown waits for queued events
const flushTimeout = 2 * time.Second

// allowedExtra lists the only extra fields kept on outgoing events
var allowedExtra = map[string]bool{
	"error_type": true,
	"component":  true,
}

// Option adjusts Sentry initialization
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests
func WithTransport(transport sentry.Transport) Option {
	return func(o *sentry.ClientOptions) {
		o.Transport = transport
	}
}

// InitSentry initializes the Sentry SDK and installs the error reporter. It
// does nothing unless telemetry is enabled in settings.
func InitSentry(settings *conf.Settings, version string, log logger.Logger, opts ...Option) error {
	if log == nil {
		log = logger.Global().Module(componentTelemetry)
	}
	if !settings.Sentry.Enabled {
		log.Info("Sentry telemetry is disabled (opt-in required)")
		errors.SetTelemetryReporter(nil)
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry is enabled but no DSN is configured").
			Component(componentTelemetry).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_sentry").
			Build()
	}

	options := sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		Debug:            settings.Sentry.Debug,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("naskban@%s", version),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component(componentTelemetry).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_sentry").
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("instance", settings.Main.Name)
		scope.SetTag("database", settings.Database.Type)
	})
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("Sentry telemetry initialized",
		logger.String("release", options.Release),
		logger.Bool("debug", options.Debug))
	return nil
}

// applyPrivacyFilters removes user, host and runtime details from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// Shutdown flushes pending events and detaches the error reporter
func Shutdown() {
	errors.SetTelemetryReporter(nil)
	sentry.Flush(flushTimeout)
}
