package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/testutil"
)

func seedSource(t *testing.T, db *gorm.DB) {
	t.Helper()
	book := testutil.SeedBook(t, db, testutil.PublishedBook(7, true, false),
		testutil.PageSeed{Number: 1, Text: "الا یا ایها الساقی", OCRed: true},
		testutil.PageSeed{Number: 2, Text: "ادر کاسا و ناولها", OCRed: true},
	)
	require.NoError(t, db.Create(&entities.OCRQueueMarker{QueueMarker: entities.QueueMarker{BookID: book.ID}}).Error)
	require.NoError(t, db.Create(&entities.GanjoorLink{
		ID:             uuid.New(),
		GanjoorPostID:  2131,
		GanjoorURL:     "https://ganjoor.net/hafez/ghazal/sh1",
		BookID:         book.ID,
		PageNumber:     1,
		SuggestedByID:  "user-1",
		SuggestionDate: time.Now(),
		ReviewResult:   entities.ReviewApproved,
	}).Error)
}

func runMigration(t *testing.T, cfg *Config, source, target *gorm.DB) (*MigrationStats, string) {
	t.Helper()
	var out bytes.Buffer
	m := newMigrator(cfg, &out, source, target, false)
	stats, err := m.Run(context.Background())
	require.NoError(t, err)
	return stats, out.String()
}

func TestMigratorCopiesEveryTable(t *testing.T) {
	source := testutil.NewTestDB(t)
	target := testutil.NewTestDB(t)
	seedSource(t, source)

	stats, _ := runMigration(t, &Config{AutoMigrate: true}, source, target)

	migrated, skipped, errs := stats.Totals()
	assert.Equal(t, int64(5), migrated, "book, two pages, a queue marker and a link")
	assert.Zero(t, skipped)
	assert.Zero(t, errs)
	assert.Len(t, stats.Tables, len(tables))

	var page entities.Page
	require.NoError(t, target.Where("book_id = ? AND page_number = ?", 7, 2).First(&page).Error)
	assert.Equal(t, "ادر کاسا و ناولها", page.PageText)

	var out bytes.Buffer
	require.NoError(t, NewVerifier(source, target, &out).Verify(context.Background()))
	assert.Contains(t, out.String(), "Pages: 2 samples verified")
	assert.Contains(t, out.String(), "Links: 1 samples verified")
}

func TestMigratorSkipsRowsAlreadyInTarget(t *testing.T) {
	source := testutil.NewTestDB(t)
	target := testutil.NewTestDB(t)
	seedSource(t, source)

	runMigration(t, &Config{}, source, target)
	stats, _ := runMigration(t, &Config{}, source, target)

	migrated, skipped, _ := stats.Totals()
	assert.Zero(t, migrated)
	assert.Equal(t, int64(5), skipped)
}

func TestMigratorCleanRecopies(t *testing.T) {
	source := testutil.NewTestDB(t)
	target := testutil.NewTestDB(t)
	seedSource(t, source)

	runMigration(t, &Config{}, source, target)
	stats, out := runMigration(t, &Config{Clean: true}, source, target)

	migrated, skipped, _ := stats.Totals()
	assert.Equal(t, int64(5), migrated)
	assert.Zero(t, skipped)
	assert.Contains(t, out, "Tables cleaned")
}

func TestVerifierReportsCountMismatch(t *testing.T) {
	source := testutil.NewTestDB(t)
	target := testutil.NewTestDB(t)
	seedSource(t, source)

	var out bytes.Buffer
	err := NewVerifier(source, target, &out).Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record counts do not match")
}

func TestMigrationStatsPrint(t *testing.T) {
	stats := &MigrationStats{
		StartTime: time.Unix(0, 0),
		EndTime:   time.Unix(2, 0),
		Tables: []TableStats{
			{Name: "pdf_books", Migrated: 3},
			{Name: "pdf_pages", Migrated: 10, Skipped: 2, Errors: 1},
		},
	}
	var out bytes.Buffer
	stats.Print(&out)

	assert.Contains(t, out.String(), "Duration: 2s")
	assert.Regexp(t, `TOTAL\s+13\s+2\s+1`, out.String())
}

func TestConfigLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "naskban.db")
	require.NoError(t, os.WriteFile(dbPath, nil, 0o600))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{SQLitePath: dbPath, BatchSize: 100}, ""},
		{"missing database", Config{SQLitePath: dbPath + ".missing", BatchSize: 100}, "not found"},
		{"zero batch", Config{SQLitePath: dbPath}, "at least 1"},
		{"huge batch", Config{SQLitePath: dbPath, BatchSize: maxBatchSize + 1}, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Load()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSanitizedDSNMasksPassword(t *testing.T) {
	cfg := Config{MySQL: conf.MySQLSettings{
		Host: "db.internal", Port: 3306, Username: "naskban", Password: "secret", Database: "library",
	}}
	assert.Contains(t, cfg.GetMySQLDSN(), "secret")
	assert.NotContains(t, cfg.GetSanitizedMySQLDSN(), "secret")
	assert.Contains(t, cfg.GetSanitizedMySQLDSN(), "naskban:****@tcp(db.internal:3306)/library")

	cfg = Config{MySQLDSN: "root:hunter2@tcp(localhost:3306)/naskban"}
	assert.Equal(t, "root:****@tcp(localhost:3306)/naskban", cfg.GetSanitizedMySQLDSN())
}
