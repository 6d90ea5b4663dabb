package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSlogLoggerWritesModuleAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("processing")

	log.Info("book fully OCRed", Int("book_id", 42), String("stage", "ocr"))

	out := buf.String()
	assert.Contains(t, out, "module=processing")
	assert.Contains(t, out, "book_id=42")
	assert.Contains(t, out, "stage=ocr")
	assert.Contains(t, out, `msg="book fully OCRed"`)
}

func TestModuleNesting(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("processing").Module("filltext")

	log.Info("started")

	assert.Contains(t, buf.String(), "module=processing.filltext")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestTraceLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelTrace, time.UTC)

	log.Trace("sql query")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithAccumulatesWithoutMutatingParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, time.UTC)
	child := parent.With(String("job_id", "abc"))

	parent.Info("parent entry")
	child.Info("child entry")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[0]), "job_id")
	assert.Contains(t, string(lines[1]), "job_id=abc")
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "req-1")).Info("handled")
	log.WithContext(context.Background()).Info("no trace")

	out := buf.String()
	assert.Contains(t, out, "trace_id=req-1")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("trace_id")))
}

func TestErrorField(t *testing.T) {
	assert.Equal(t, "boom", Error(errors.New("boom")).Value)
	assert.Nil(t, Error(nil).Value)
	assert.Equal(t, "error", Error(nil).Key)
}

func TestCentralLoggerFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "naskban.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "warn"},
	})
	require.NoError(t, err)

	cl.Module("ganjoor-links").Info("link approved", String("link_id", "x1"))
	cl.Module("datastore").Info("filtered by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "link approved", entry["msg"])
	assert.Equal(t, "ganjoor-links", entry["module"])
	assert.Equal(t, "x1", entry["link_id"])
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestGormAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewGormLoggerAdapter(NewSlogLogger(&buf, LogLevelTrace, time.UTC), 50*time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	adapter.Trace(ctx, time.Now(), sql, nil)
	adapter.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	adapter.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))
	adapter.Trace(ctx, time.Now().Add(-time.Second), sql, nil)

	out := buf.String()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("level=TRACE")))
	assert.Contains(t, out, `msg="query error"`)
	assert.Contains(t, out, `msg="slow query"`)
}
