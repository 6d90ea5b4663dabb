package telemetry

import (
	"io"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
}

func TestInitSentryDisabled(t *testing.T) {
	settings := &conf.Settings{}
	require.NoError(t, InitSentry(settings, "dev", testLogger()))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitSentryRequiresDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Sentry.Enabled = true

	err := InitSentry(settings, "dev", testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestInfrastructureErrorsAreReported(t *testing.T) {
	transport := NewMockTransport()
	settings := &conf.Settings{}
	settings.Sentry.Enabled = true
	settings.Sentry.DSN = "https://public@sentry.example.org/1"
	settings.Main.Name = "naskban-test"

	require.NoError(t, InitSentry(settings, "1.2.3", testLogger(), WithTransport(transport)))
	t.Cleanup(Shutdown)

	_ = errors.Newf("validation failure").
		Component("ganjoor-links").
		Category(errors.CategoryValidation).
		Build()
	assert.Empty(t, transport.Events(), "business-rule errors are not reported")

	_ = errors.Newf("database is locked").
		Component("processing").
		Category(errors.CategoryDatabase).
		Context("operation", "set_page_ocr_info").
		Build()

	event := transport.LastEvent()
	require.NotNil(t, event)
	assert.Contains(t, event.Message, "database is locked")
	assert.Equal(t, "processing", event.Tags["component"])
	assert.Equal(t, "naskban-test", event.Tags["instance"])
	assert.Empty(t, event.ServerName)
	assert.Equal(t, "naskban@1.2.3", event.Release)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := &sentry.Event{
		ServerName: "library-01",
		User:       sentry.User{ID: "42", Email: "reader@example.org"},
		Contexts: map[string]sentry.Context{
			"os":      {"name": "linux"},
			"runtime": {"name": "go"},
			"app":     {"name": "naskban"},
		},
		Extra: map[string]any{
			"component": "library",
			"user_id":   "42",
		},
		Tags: map[string]string{
			"hostname": "library-01",
			"category": "database",
		},
	}

	filtered := applyPrivacyFilters(event)

	assert.Empty(t, filtered.ServerName)
	assert.True(t, filtered.User.IsEmpty())
	assert.NotContains(t, filtered.Contexts, "os")
	assert.NotContains(t, filtered.Contexts, "runtime")
	assert.Contains(t, filtered.Contexts, "app")
	assert.Equal(t, map[string]any{"component": "library"}, filtered.Extra)
	assert.Equal(t, map[string]string{"category": "database"}, filtered.Tags)
}
