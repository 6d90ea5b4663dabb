// Package sources provides backup sources
package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const componentSource = "backup-source"

// snapshotName is the file the snapshot is written to inside the work dir
const snapshotName = "snapshot.db"

// SQLiteSource snapshots a live SQLite entity store with VACUUM INTO, which
// produces a consistent, defragmented copy without blocking writers for
// longer than one read transaction.
type SQLiteSource struct {
	db  *gorm.DB
	log logger.Logger
}

// NewSQLiteSource creates a source over the open store
func NewSQLiteSource(db *gorm.DB, log logger.Logger) *SQLiteSource {
	if log == nil {
		log = logger.Global().Module(componentSource)
	}
	return &SQLiteSource{db: db, log: log}
}

// Name implements backup.Source
func (s *SQLiteSource) Name() string {
	return "sqlite"
}

// Snapshot implements backup.Source. The copy is checked with
// PRAGMA integrity_check before it is handed back.
func (s *SQLiteSource) Snapshot(ctx context.Context, dir string) (string, error) {
	path := filepath.Join(dir, snapshotName)
	if _, err := os.Stat(path); err == nil {
		return "", snapshotError(fmt.Errorf("snapshot %s already exists", path), "stat_snapshot", errors.CategoryConflict)
	}

	if err := s.db.WithContext(ctx).Exec("VACUUM INTO ?", path).Error; err != nil {
		return "", snapshotError(err, "vacuum_into", errors.CategoryDatabase)
	}

	if err := checkIntegrity(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	if stat, err := os.Stat(path); err == nil {
		s.log.Debug("sqlite snapshot written", logger.String("path", path), logger.Int64("size", stat.Size()))
	}
	return path, nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return snapshotError(err, "open_snapshot", errors.CategoryDatabase)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return snapshotError(err, "open_snapshot", errors.CategoryDatabase)
	}
	defer sqlDB.Close()

	var result string
	if err := db.WithContext(ctx).Raw("PRAGMA integrity_check").Scan(&result).Error; err != nil {
		return snapshotError(err, "integrity_check", errors.CategoryDatabase)
	}
	if result != "ok" {
		return snapshotError(fmt.Errorf("integrity check reported %q", result), "integrity_check", errors.CategoryDatabase)
	}
	return nil
}

func snapshotError(err error, operation string, category errors.ErrorCategory) error {
	return errors.New(err).
		Component(componentSource).
		Category(category).
		Context("operation", operation).
		Build()
}
