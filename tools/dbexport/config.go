package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore"
)

const maxBatchSize = 10000

// Config holds the configuration for the export tool.
type Config struct {
	// Source database
	SQLitePath string

	// Target database - either DSN or individual components
	MySQLDSN string
	MySQL    conf.MySQLSettings

	// Migration options
	BatchSize   int
	DropTables  bool
	Clean       bool
	AutoMigrate bool
	SkipVerify  bool
	Verbose     bool

	// Config file path for fallback
	ConfigPath string
}

// Load validates the configuration, falling back to config.yaml for the
// source path and MySQL connection when flags leave them empty.
func (c *Config) Load() error {
	if c.SQLitePath == "" {
		if err := c.loadFromConfigFile(); err != nil && c.SQLitePath == "" {
			return fmt.Errorf("--sqlite-path is required (or provide config.yaml): %w", err)
		}
	}

	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch-size too large (max %d)", maxBatchSize)
	}

	return nil
}

// loadFromConfigFile reads the naskban config file.
func (c *Config) loadFromConfigFile() error {
	configPath := c.ConfigPath
	if configPath == "" {
		// Prefer the per-user config, then the working directory
		if homeDir, err := os.UserHomeDir(); err == nil {
			p := filepath.Join(homeDir, ".config", "naskban", "config.yaml")
			if _, statErr := os.Stat(p); statErr == nil {
				configPath = p
			}
		}
		if configPath == "" {
			configPath = "config.yaml"
		}
	}

	settings, err := conf.LoadFromFile(configPath)
	if err != nil {
		return err
	}

	if c.SQLitePath == "" {
		c.SQLitePath = settings.Database.SQLite.Path
	}
	// A config that already points at MySQL names the export target
	if c.MySQLDSN == "" && settings.Database.Type == conf.DatabaseMySQL {
		c.MySQL = settings.Database.MySQL
	}

	return nil
}

// GetMySQLDSN returns MySQLDSN when set, otherwise a DSN built from the
// individual components.
func (c *Config) GetMySQLDSN() string {
	if c.MySQLDSN != "" {
		return c.MySQLDSN
	}
	return datastore.BuildMySQLDSN(&c.MySQL)
}

// GetSanitizedMySQLDSN returns the MySQL DSN with the password masked for logging.
func (c *Config) GetSanitizedMySQLDSN() string {
	if c.MySQLDSN != "" {
		return maskDSNPassword(c.MySQLDSN)
	}
	masked := c.MySQL
	if masked.Password != "" {
		masked.Password = "****"
	}
	return datastore.BuildMySQLDSN(&masked)
}

// maskDSNPassword masks the password of a user:password@tcp(...) DSN.
func maskDSNPassword(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at == -1 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon == -1 {
		return dsn
	}
	return dsn[:colon+1] + "****" + dsn[at:]
}
