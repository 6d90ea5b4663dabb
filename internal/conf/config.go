// config.go: configuration loading for naskban
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rmuseum/naskban-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Database backends
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// MainSettings holds process-wide identity settings
type MainSettings struct {
	Name     string `yaml:"name"`     // instance name, used as MQTT client id and in notifications
	SiteURL  string `yaml:"siteurl"`  // public site root used for friendly URLs
	ReadOnly bool   `yaml:"readonly"` // reject user-generated writes (bookmarks) during maintenance
}

// SQLiteSettings contains settings for the SQLite database
type SQLiteSettings struct {
	Path string `yaml:"path"` // path to sqlite database file
}

// MySQLSettings contains settings for the MySQL database
type MySQLSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DatabaseSettings selects and configures the entity store
type DatabaseSettings struct {
	Type               string         `yaml:"type"` // sqlite or mysql
	SQLite             SQLiteSettings `yaml:"sqlite"`
	MySQL              MySQLSettings  `yaml:"mysql"`
	SlowQueryThreshold time.Duration  `yaml:"slowquerythreshold"` // 0 disables slow query warnings
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
	Debug   bool   `yaml:"debug"`
}

// GanjoorSettings configures the external poem corpus client
type GanjoorSettings struct {
	APIURL    string        `yaml:"apiurl"`
	CacheTTL  time.Duration `yaml:"cachettl"`  // how long category and page metadata is reused
	RateLimit float64       `yaml:"ratelimit"` // requests per second, 0 disables limiting
	Burst     int           `yaml:"burst"`
}

// ProcessingSettings configures the OCR and AI revision pipelines
type ProcessingSettings struct {
	MaxBookTextBytes int `yaml:"maxbooktextbytes"` // upper bound for aggregated book text, 0 means unbounded
}

// JobQueueSettings configures background work
type JobQueueSettings struct {
	Workers     int           `yaml:"workers"`
	Capacity    int           `yaml:"capacity"`
	StopTimeout time.Duration `yaml:"stoptimeout"`
}

// MQTTSettings configures pipeline event publishing
type MQTTSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicprefix"`
	Retain      bool   `yaml:"retain"`
}

// NotificationSettings configures job outcome notifications
type NotificationSettings struct {
	Enabled bool          `yaml:"enabled"`
	URLs    []string      `yaml:"urls"` // shoutrrr service URLs
	Timeout time.Duration `yaml:"timeout"`
}

// SentrySettings configures error telemetry (opt-in)
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Debug   bool   `yaml:"debug"`
}

// Backup target types
const (
	BackupTargetLocal = "local"
	BackupTargetSFTP  = "sftp"
	BackupTargetFTP   = "ftp"
)

// BackupTargetSettings configures one place archives are shipped to
type BackupTargetSettings struct {
	Type       string        `yaml:"type"` // local, sftp or ftp
	Path       string        `yaml:"path"` // directory on the target
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"` // 0 selects the protocol default
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	KeyFile    string        `yaml:"keyfile"`    // sftp private key, preferred over password
	KnownHosts string        `yaml:"knownhosts"` // sftp known_hosts file, defaults to ~/.ssh/known_hosts
	Timeout    time.Duration `yaml:"timeout"`
}

// BackupSettings configures entity store backups
type BackupSettings struct {
	Enabled  bool                   `yaml:"enabled"`
	Interval time.Duration          `yaml:"interval"` // 0 disables scheduled backups
	Keep     int                    `yaml:"keep"`     // archives kept per target
	Targets  []BackupTargetSettings `yaml:"targets"`
}

// Settings contains all configuration options
type Settings struct {
	Debug bool `yaml:"debug"`

	Main         MainSettings         `yaml:"main"`
	Database     DatabaseSettings     `yaml:"database"`
	WebServer    WebServerSettings    `yaml:"webserver"`
	Ganjoor      GanjoorSettings      `yaml:"ganjoor"`
	Processing   ProcessingSettings   `yaml:"processing"`
	JobQueue     JobQueueSettings     `yaml:"jobqueue"`
	MQTT         MQTTSettings         `yaml:"mqtt"`
	Notification NotificationSettings `yaml:"notification"`
	Sentry       SentrySettings       `yaml:"sentry"`
	Backup       BackupSettings       `yaml:"backup"`
	Logging      logger.LoggingConfig `yaml:"logging"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file from the default locations, creating
// one from the embedded template when none exists, and applies environment
// overrides.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	return unmarshalSettings()
}

// LoadFromFile reads configuration from an explicit file path.
func LoadFromFile(path string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	setDefaultConfig()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := bindEnvVars(); err != nil {
		return nil, err
	}

	return unmarshalSettings()
}

func unmarshalSettings() (*Settings, error) {
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	// The logger is not configured yet at this point
	fmt.Fprintln(os.Stderr, "Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// RedactedYAML renders settings as YAML with secrets masked, for display.
func RedactedYAML(settings *Settings) ([]byte, error) {
	redacted := *settings
	if redacted.Database.MySQL.Password != "" {
		redacted.Database.MySQL.Password = redactedValue
	}
	if redacted.MQTT.Password != "" {
		redacted.MQTT.Password = redactedValue
	}
	if redacted.Sentry.DSN != "" {
		redacted.Sentry.DSN = redactedValue
	}
	if len(redacted.Backup.Targets) > 0 {
		targets := make([]BackupTargetSettings, len(redacted.Backup.Targets))
		copy(targets, redacted.Backup.Targets)
		for i := range targets {
			if targets[i].Password != "" {
				targets[i].Password = redactedValue
			}
		}
		redacted.Backup.Targets = targets
	}
	if len(redacted.Notification.URLs) > 0 {
		urls := make([]string, len(redacted.Notification.URLs))
		for i := range urls {
			urls[i] = redactedValue
		}
		redacted.Notification.URLs = urls
	}
	return yaml.Marshal(&redacted)
}

const redactedValue = "[REDACTED]"
