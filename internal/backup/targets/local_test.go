package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
}

// writeArchive creates a fake archive file and matching metadata
func writeArchive(t *testing.T, created time.Time, body string) (string, *backup.Metadata) {
	t.Helper()
	md := &backup.Metadata{ID: "naskban-backup-" + created.UTC().Format("20060102-150405"), Timestamp: created}
	path := filepath.Join(t.TempDir(), md.FileName())
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, md
}

func TestLocalTargetStoreListDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "backups")
	target, err := NewLocalTarget(dir, testLogger())
	require.NoError(t, err)
	assert.DirExists(t, dir)

	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	path, md := writeArchive(t, created, "archive body")
	require.NoError(t, target.Store(ctx, path, md))

	// Unrelated files and leftover partial uploads are not archives
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, partName(md.FileName())+"-123"), nil, 0o600))

	stored, err := os.ReadFile(filepath.Join(dir, md.FileName()))
	require.NoError(t, err)
	assert.Equal(t, "archive body", string(stored))

	infos, err := target.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, md.ID, infos[0].ID)
	assert.Equal(t, created, infos[0].Timestamp)
	assert.Equal(t, int64(len("archive body")), infos[0].Size)
	assert.Equal(t, target.Name(), infos[0].Target)

	require.NoError(t, target.Delete(ctx, md.ID))
	assert.NoFileExists(t, filepath.Join(dir, md.FileName()))

	err = target.Delete(ctx, md.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLocalTargetRejectsEscapingIDs(t *testing.T) {
	target, err := NewLocalTarget(t.TempDir(), testLogger())
	require.NoError(t, err)

	err = target.Delete(context.Background(), "../config")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestLocalTargetStoreHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	target, err := NewLocalTarget(dir, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path, md := writeArchive(t, time.Now(), "archive body")
	require.Error(t, target.Store(ctx, path, md))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the partial upload is removed")
}

func TestNewLocalTargetRequiresPath(t *testing.T) {
	_, err := NewLocalTarget("", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
