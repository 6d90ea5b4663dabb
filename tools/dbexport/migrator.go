package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rmuseum/naskban-go/internal/datastore"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/logger"
)

// Migrator copies every entity table from the source store to the target.
type Migrator struct {
	cfg         Config
	out         io.Writer
	sourceDB    *gorm.DB
	targetDB    *gorm.DB
	mysqlTarget bool
	closers     []datastore.Manager
}

// MigrationStats tracks migration statistics.
type MigrationStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table migration statistics.
type TableStats struct {
	Name      string
	Migrated  int64
	Skipped   int64
	Errors    int64
	Duration  time.Duration
	BatchSize int
}

// Totals sums the per-table counters.
func (s *MigrationStats) Totals() (migrated, skipped, errs int64) {
	for _, t := range s.Tables {
		migrated += t.Migrated
		skipped += t.Skipped
		errs += t.Errors
	}
	return migrated, skipped, errs
}

// Print outputs the migration statistics.
func (s *MigrationStats) Print(w io.Writer) {
	fmt.Fprintln(w, "\n=== Migration Summary ===")
	fmt.Fprintf(w, "Duration: %s\n\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond))

	fmt.Fprintf(w, "%-30s %10s %10s %10s %12s\n", "Table", "Migrated", "Skipped", "Errors", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 76))
	for _, t := range s.Tables {
		fmt.Fprintf(w, "%-30s %10d %10d %10d %12s\n",
			t.Name, t.Migrated, t.Skipped, t.Errors, t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w, strings.Repeat("-", 76))

	migrated, skipped, errs := s.Totals()
	fmt.Fprintf(w, "%-30s %10d %10d %10d\n", "TOTAL", migrated, skipped, errs)
}

// table is one entity table in dependency order.
type table struct {
	name      string
	batchSize int
	migrate   func(ctx context.Context, m *Migrator, batchSize int) (*TableStats, error)
	model     any
}

// tables lists parents before children so foreign keys resolve even when
// the target enforces them.
var tables = []table{
	{"pdf_books", 500, migrateTable[entities.Book], &entities.Book{}},
	{"pdf_pages", 1000, migrateTable[entities.Page], &entities.Page{}},
	{"tags", 5000, migrateTable[entities.Tag], &entities.Tag{}},
	{"page_tag_values", 5000, migrateTable[entities.TagValue], &entities.TagValue{}},
	{"pdf_page_unrevised_texts", 1000, migrateTable[entities.UnrevisedTextBackup], &entities.UnrevisedTextBackup{}},
	{"ocr_queue", 5000, migrateTable[entities.OCRQueueMarker], &entities.OCRQueueMarker{}},
	{"ai_queue", 5000, migrateTable[entities.AIQueueMarker], &entities.AIQueueMarker{}},
	{"ganjoor_links", 2000, migrateTable[entities.GanjoorLink], &entities.GanjoorLink{}},
	{"ganjoor_poem_match_findings", 2000, migrateTable[entities.PoemMatchFinding], &entities.PoemMatchFinding{}},
	{"long_running_jobs", 2000, migrateTable[entities.LongRunningJob], &entities.LongRunningJob{}},
	{"pdf_bookmarks", 5000, migrateTable[entities.Bookmark], &entities.Bookmark{}},
	{"pdf_visit_records", 5000, migrateTable[entities.VisitRecord], &entities.VisitRecord{}},
}

// NewMigrator opens the SQLite source and the MySQL target.
func NewMigrator(cfg *Config, out io.Writer) (*Migrator, error) {
	level := logger.LogLevelError
	if cfg.Verbose {
		level = logger.LogLevelDebug
	}
	log := logger.NewSlogLogger(os.Stderr, level, time.Local).Module("dbexport")
	gormLogger := logger.NewGormLoggerAdapter(log, 0)

	source, err := datastore.NewSQLiteManager(cfg.SQLitePath, gormLogger, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	target, err := datastore.OpenMySQLDSN(cfg.GetMySQLDSN(), gormLogger, log)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// FOREIGN_KEY_CHECKS is a session variable, so every statement has to
	// run on the same connection
	if sqlDB, err := target.DB().DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	m := newMigrator(cfg, out, source.DB(), target.DB(), true)
	m.closers = []datastore.Manager{source, target}

	fmt.Fprintln(out, "Database connections established successfully")
	return m, nil
}

func newMigrator(cfg *Config, out io.Writer, source, target *gorm.DB, mysqlTarget bool) *Migrator {
	return &Migrator{
		cfg:         *cfg,
		out:         out,
		sourceDB:    source,
		targetDB:    target,
		mysqlTarget: mysqlTarget,
	}
}

// Close closes both database connections.
func (m *Migrator) Close() {
	for _, c := range m.closers {
		_ = c.Close()
	}
}

// Run executes the full migration.
func (m *Migrator) Run(ctx context.Context) (*MigrationStats, error) {
	stats := &MigrationStats{StartTime: time.Now()}

	if m.cfg.DropTables {
		if err := m.dropTables(); err != nil {
			return nil, fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	if m.cfg.AutoMigrate {
		fmt.Fprintln(m.out, "Creating tables in target database...")
		if err := m.targetDB.AutoMigrate(entities.All()...); err != nil {
			return nil, fmt.Errorf("failed to auto-migrate tables: %w", err)
		}
	}

	if err := m.setForeignKeyChecks(false); err != nil {
		return nil, fmt.Errorf("failed to disable foreign key checks: %w", err)
	}
	defer func() {
		if err := m.setForeignKeyChecks(true); err != nil {
			fmt.Fprintf(m.out, "Warning: could not re-enable foreign key checks: %v\n", err)
		}
	}()

	if m.cfg.Clean {
		m.cleanTables()
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batchSize := t.batchSize
		if m.cfg.BatchSize > 0 && m.cfg.BatchSize < t.batchSize {
			batchSize = m.cfg.BatchSize
		}

		tableStats, err := t.migrate(ctx, m, batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
		stats.Tables = append(stats.Tables, *tableStats)
	}

	stats.EndTime = time.Now()
	return stats, nil
}

func (m *Migrator) setForeignKeyChecks(enabled bool) error {
	stmt := "PRAGMA foreign_keys = OFF"
	switch {
	case m.mysqlTarget && enabled:
		stmt = "SET FOREIGN_KEY_CHECKS=1"
	case m.mysqlTarget:
		stmt = "SET FOREIGN_KEY_CHECKS=0"
	case enabled:
		stmt = "PRAGMA foreign_keys = ON"
	}
	return m.targetDB.Exec(stmt).Error
}

// dropTables drops every entity table from the target, children first.
func (m *Migrator) dropTables() error {
	fmt.Fprintln(m.out, "Dropping all tables from target database...")

	if err := m.setForeignKeyChecks(false); err != nil {
		return fmt.Errorf("failed to disable foreign key checks: %w", err)
	}

	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].name
		if err := m.targetDB.Migrator().DropTable(name); err != nil {
			fmt.Fprintf(m.out, "Warning: could not drop table %s: %v\n", name, err)
		} else if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Dropped: %s\n", name)
		}
	}

	if err := m.setForeignKeyChecks(true); err != nil {
		return fmt.Errorf("failed to re-enable foreign key checks: %w", err)
	}

	fmt.Fprintln(m.out, "Tables dropped successfully")
	return nil
}

// cleanTables deletes all target rows, children first.
func (m *Migrator) cleanTables() {
	fmt.Fprintln(m.out, "Cleaning target tables...")
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if err := m.targetDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t.model).Error; err != nil {
			fmt.Fprintf(m.out, "Warning: could not clean table %s: %v\n", t.name, err)
			continue
		}
		if m.cfg.Verbose {
			fmt.Fprintf(m.out, "  Cleaned: %s\n", t.name)
		}
	}
	fmt.Fprintln(m.out, "Tables cleaned")
}

// migrateTable copies one table in batches. Rows whose primary key already
// exists in the target are skipped; a failing batch is counted and the
// export continues with the next one.
func migrateTable[T any](ctx context.Context, m *Migrator, batchSize int) (*TableStats, error) {
	start := time.Now()
	tableName := tableNameOf[T](m.sourceDB)
	stats := &TableStats{Name: tableName, BatchSize: batchSize}

	fmt.Fprintf(m.out, "Migrating %s...\n", tableName)

	var sourceCount int64
	if err := m.sourceDB.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source records: %w", err)
	}

	if sourceCount == 0 {
		fmt.Fprintf(m.out, "  %s: no records to migrate\n", tableName)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var processed int64
	batchNum := 0

	err := m.sourceDB.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), batchSize, func(tx *gorm.DB, batch int) error {
		batchNum++
		records := tx.Statement.Dest.(*[]T)

		result := m.targetDB.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(records)
		if result.Error != nil {
			stats.Errors += int64(len(*records))
			fmt.Fprintf(m.out, "  Batch %d error: %v\n", batchNum, result.Error)
			return nil //nolint:nilerr // keep exporting the remaining batches
		}

		stats.Migrated += result.RowsAffected
		stats.Skipped += int64(len(*records)) - result.RowsAffected
		processed += int64(len(*records))

		if m.cfg.Verbose || batchNum%10 == 0 {
			fmt.Fprintf(m.out, "  %s: %d/%d (%.1f%%)\n", tableName, processed, sourceCount,
				float64(processed)/float64(sourceCount)*100)
		}
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	fmt.Fprintf(m.out, "  %s: completed (%d migrated, %d skipped, %d errors) in %s\n",
		tableName, stats.Migrated, stats.Skipped, stats.Errors, stats.Duration.Round(time.Millisecond))

	return stats, nil
}

func tableNameOf[T any](db *gorm.DB) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return stmt.Schema.Table
}
