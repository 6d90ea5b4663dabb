package datastore

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "data", "naskban.db")

	m, err := Open(settings, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Initialize())
	assert.False(t, m.IsMySQL())
	assert.Equal(t, settings.Database.SQLite.Path, m.Path())

	for _, table := range []string{"pdf_books", "pdf_pages", "ocr_queue", "ai_queue", "ganjoor_links", "ganjoor_poem_match_findings"} {
		assert.True(t, m.DB().Migrator().HasTable(table), table)
	}

	// Initialize is repeatable.
	require.NoError(t, m.Initialize())
	assert.True(t, m.DB().Migrator().HasIndex(&entities.PoemMatchFinding{}, "idx_poem_match_cat_book"))
}

func TestOpenRejectsUnknownType(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.Type = "oracle"

	_, err := Open(settings, testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn := BuildMySQLDSN(&conf.MySQLSettings{
		Host:     "db.internal",
		Port:     3307,
		Username: "naskban",
		Password: "p@ss",
		Database: "library",
	})

	assert.Contains(t, dsn, "naskban:p@ss@tcp(db.internal:3307)/library")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
