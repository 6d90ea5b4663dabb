// Package datastore opens the entity store and creates its schema.
package datastore

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

const componentDatastore = "datastore"

// Manager defines the interface for entity store lifecycle operations.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite,
	// host:port/database for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Open creates the Manager selected by settings.Database.Type.
func Open(settings *conf.Settings, log logger.Logger) (Manager, error) {
	if log == nil {
		log = logger.Global().Module(componentDatastore)
	}
	gormLogger := logger.NewGormLoggerAdapter(log, settings.Database.SlowQueryThreshold)

	switch settings.Database.Type {
	case conf.DatabaseMySQL:
		return NewMySQLManager(&settings.Database.MySQL, gormLogger, log)
	case conf.DatabaseSQLite, "":
		return NewSQLiteManager(settings.Database.SQLite.Path, gormLogger, log)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component(componentDatastore).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// migrate runs AutoMigrate for every entity.
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entities.All()...); err != nil {
		return errors.New(err).
			Component(componentDatastore).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}
	return nil
}

// SQLiteManager handles a SQLite database file.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
	log    logger.Logger
}

// NewSQLiteManager opens the database file at path, creating parent
// directories as needed.
func NewSQLiteManager(path string, gormLogger *logger.GormLoggerAdapter, log logger.Logger) (*SQLiteManager, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build DSN with recommended SQLite pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentDatastore).
			Category(errors.CategoryDatabase).
			Context("operation", "open_sqlite").
			Context("path", path).
			Build()
	}

	log.Info("opened SQLite database", logger.String("path", path))
	return &SQLiteManager{db: db, dbPath: path, log: log}, nil
}

// Initialize creates or updates the schema.
func (m *SQLiteManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string // host:port/database for display
	log      logger.Logger
}

// BuildMySQLDSN renders connection settings as a driver DSN. ClientFoundRows
// makes UPDATE report matched rows, so an update that changes nothing is not
// mistaken for a missing row.
func BuildMySQLDSN(cfg *conf.MySQLSettings) string {
	dsnCfg := mysqldriver.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	dsnCfg.ClientFoundRows = true
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}
	return dsnCfg.FormatDSN()
}

// NewMySQLManager opens a MySQL connection pool.
func NewMySQLManager(cfg *conf.MySQLSettings, gormLogger *logger.GormLoggerAdapter, log logger.Logger) (*MySQLManager, error) {
	location := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return openMySQL(BuildMySQLDSN(cfg), location, gormLogger, log)
}

// OpenMySQLDSN opens a MySQL connection pool from a ready driver DSN.
func OpenMySQLDSN(dsn string, gormLogger *logger.GormLoggerAdapter, log logger.Logger) (*MySQLManager, error) {
	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, errors.New(err).
			Component(componentDatastore).
			Category(errors.CategoryConfiguration).
			Context("operation", "parse_mysql_dsn").
			Build()
	}
	return openMySQL(dsn, parsed.Addr+"/"+parsed.DBName, gormLogger, log)
}

func openMySQL(dsn, location string, gormLogger *logger.GormLoggerAdapter, log logger.Logger) (*MySQLManager, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentDatastore).
			Category(errors.CategoryDatabase).
			Context("operation", "open_mysql").
			Context("location", location).
			Build()
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("opened MySQL database", logger.String("location", location))
	return &MySQLManager{db: db, location: location, log: log}, nil
}

// Initialize creates or updates the schema.
func (m *MySQLManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database location (host:port/database).
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
