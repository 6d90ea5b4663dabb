package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

type fixedBackups struct {
	infos []backup.Info
	err   error
}

func (f fixedBackups) List(context.Context) ([]backup.Info, error) { return f.infos, f.err }

type fixedStarter struct {
	id  uuid.UUID
	err error
}

func (f fixedStarter) Start(context.Context) (uuid.UUID, error) { return f.id, f.err }

func newBackupAPI(t *testing.T, svc Services) *echo.Echo {
	t.Helper()
	e := echo.New()
	_, err := New(e, svc, nil, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	require.NoError(t, err)
	return e
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, Prefix+path, nil))
	return rec
}

func TestBackupEndpoints(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	e := newBackupAPI(t, Services{
		Backup: fixedStarter{id: id},
		Backups: fixedBackups{infos: []backup.Info{
			{ID: "naskban-backup-20240501-083000", Target: "local:/var/backups", Timestamp: created, Size: 2048},
		}},
	})

	rec := serve(e, http.MethodPost, "/jobs/backup")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, id.String(), decode[map[string]string](t, rec)["id"])

	rec = serve(e, http.MethodGet, "/backups")
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decode[[]backup.Info](t, rec)
	require.Len(t, infos, 1)
	assert.Equal(t, "local:/var/backups", infos[0].Target)
	assert.Equal(t, int64(2048), infos[0].Size)
}

func TestBackupEndpointsWhenDisabled(t *testing.T) {
	e := newBackupAPI(t, Services{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/jobs/backup"},
		{http.MethodGet, "/backups"},
	} {
		rec := serve(e, tc.method, tc.path)
		assert.Equal(t, http.StatusConflict, rec.Code, tc.path)
		assert.Contains(t, rec.Body.String(), msgBackupsDisabled)
	}
}

func TestStartBackupWhileRunning(t *testing.T) {
	busy := errors.Newf("a backup is already running").Category(errors.CategoryConflict).Build()
	e := newBackupAPI(t, Services{Backup: fixedStarter{err: busy}, Backups: fixedBackups{}})

	rec := serve(e, http.MethodPost, "/jobs/backup")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
