package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/notification"
	"github.com/rmuseum/naskban-go/internal/processing"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Name = "naskban-test"
	settings.Main.SiteURL = "https://naskban.ir"
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "naskban.db")
	settings.WebServer.Listen = "127.0.0.1:0"
	settings.JobQueue.Workers = 1
	settings.JobQueue.Capacity = 4
	settings.JobQueue.StopTimeout = 5 * time.Second
	return settings
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testSettings(t), &buildinfo.Context{Version: "test"},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a
}

func TestNewWiresServices(t *testing.T) {
	a := newTestApp(t)

	assert.IsType(t, notification.Noop{}, a.Notifier, "notifications are opt-in")
	assert.True(t, a.Jobs.IsRunning())
	assert.Same(t, a.AIQueue, a.Queue(processing.KindAI))
	assert.Same(t, a.OCRQueue, a.Queue(processing.KindOCR))

	svc := a.APIServices()
	assert.Len(t, svc.Queues, 2)
	assert.NotNil(t, svc.Links)
	assert.NotNil(t, svc.Findings)
	assert.NotNil(t, svc.Library)
}

func TestQueueAndTextFillRunAgainstTheStore(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	db := a.Store.DB()

	book := entities.Book{
		Title:  "گلستان",
		Status: entities.BookStatusPublished,
		OCRed:  true,
		Pages: []entities.Page{
			{PageNumber: 1, PageText: "A", OCRed: true},
			{PageNumber: 2, PageText: "B", OCRed: true},
		},
	}
	require.NoError(t, db.Create(&book).Error)

	next, err := a.Queue(processing.KindAI).GetNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, book.ID, next.ID)

	jobID, err := a.Filler.Start(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := a.Tracker.Get(ctx, jobID)
		return err == nil && job.EndTime != nil
	}, 5*time.Second, 20*time.Millisecond)

	job, err := a.Tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Succeeded)

	var stored entities.Book
	require.NoError(t, db.First(&stored, book.ID).Error)
	assert.Equal(t, "A\nB\n", stored.BookText)
}

func TestServeStopsWithContext(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestNewFailsOnUnknownDatabase(t *testing.T) {
	settings := testSettings(t)
	settings.Database.Type = "oracle"

	_, err := New(context.Background(), settings, &buildinfo.Context{},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	assert.Error(t, err)
}

func TestBackupsAreWiredWhenEnabled(t *testing.T) {
	settings := testSettings(t)
	backupDir := filepath.Join(t.TempDir(), "backups")
	settings.Backup = conf.BackupSettings{
		Enabled: true,
		Keep:    2,
		Targets: []conf.BackupTargetSettings{{Type: conf.BackupTargetLocal, Path: backupDir}},
	}

	a, err := New(context.Background(), settings, &buildinfo.Context{Version: "test"},
		logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Backups)
	svc := a.APIServices()
	assert.NotNil(t, svc.Backup)
	assert.NotNil(t, svc.Backups)

	md, err := a.Backups.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(backupDir, md.FileName()))

	infos, err := a.Backups.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, md.ID, infos[0].ID)
}

func TestBackupsDisabledByDefault(t *testing.T) {
	a := newTestApp(t)
	assert.Nil(t, a.Backups)
	assert.Nil(t, a.APIServices().Backup)
}

func TestOutboundLoggerRecordsCalls(t *testing.T) {
	var out bytes.Buffer
	hook := outboundLogger(logger.NewSlogLogger(&out, logger.LogLevelDebug, nil))

	req := httptest.NewRequest(http.MethodGet, "https://api.ganjoor.test/api/ganjoor/cat/24", nil)
	hook(req, &http.Response{StatusCode: http.StatusOK}, nil, 120*time.Millisecond)
	hook(req, nil, io.ErrUnexpectedEOF, time.Second)

	logged := out.String()
	assert.Contains(t, logged, "outbound request")
	assert.Contains(t, logged, "api.ganjoor.test")
	assert.Contains(t, logged, "200")
	assert.Contains(t, logged, "outbound request failed")
	assert.Contains(t, logged, io.ErrUnexpectedEOF.Error())
}
