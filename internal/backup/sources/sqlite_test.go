package sources

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

func TestSQLiteSnapshotCopiesEntityStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.SeedBook(t, db, testutil.PublishedBook(12, true, true),
		testutil.PageSeed{Number: 1, Text: "بشنو این نی چون شکایت می‌کند", OCRed: true, AIRevised: true},
		testutil.PageSeed{Number: 2, Text: "از جدایی‌ها حکایت می‌کند", OCRed: true, AIRevised: true},
	)

	source := NewSQLiteSource(db, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil))
	assert.Equal(t, "sqlite", source.Name())

	dir := t.TempDir()
	path, err := source.Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, snapshotName), path)

	snapshot, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := snapshot.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var pages []entities.Page
	require.NoError(t, snapshot.Where("book_id = ?", 12).Order("page_number").Find(&pages).Error)
	require.Len(t, pages, 2)
	assert.Equal(t, "از جدایی‌ها حکایت می‌کند", pages[1].PageText)
}

func TestSQLiteSnapshotRefusesToOverwrite(t *testing.T) {
	db := testutil.NewTestDB(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotName), []byte("stale"), 0o600))

	_, err := NewSQLiteSource(db, nil).Snapshot(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSQLiteSnapshotIntoMissingDirectory(t *testing.T) {
	db := testutil.NewTestDB(t)

	_, err := NewSQLiteSource(db, nil).Snapshot(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}
