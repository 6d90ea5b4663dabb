package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

func TestMetricsHandlerExposesPipelineCounters(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordClaim(metrics.QueueOCR, true)
	m.Pipeline.RecordTextBackup()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `naskban_queue_claims_total{queue="ocr",result="success"} 1`)
	assert.Contains(t, string(body), "naskban_unrevised_text_backups_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewMetricsUsesIsolatedRegistries(t *testing.T) {
	first, err := NewMetrics()
	require.NoError(t, err)
	second, err := NewMetrics()
	require.NoError(t, err)

	assert.NotSame(t, first.Registry(), second.Registry())
}
