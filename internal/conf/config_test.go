package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFromFile(writeConfig(t, "main:\n  name: test-instance\n"))
	require.NoError(t, err)

	assert.Equal(t, "test-instance", settings.Main.Name)
	assert.Equal(t, "https://naskban.ir", settings.Main.SiteURL)
	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "naskban.db", settings.Database.SQLite.Path)
	assert.Equal(t, 24*time.Hour, settings.Ganjoor.CacheTTL)
	assert.Equal(t, 2, settings.JobQueue.Workers)
	assert.Equal(t, 30*time.Second, settings.JobQueue.StopTimeout)
	require.NotNil(t, settings.Logging.FileOutput)
	assert.Equal(t, "logs/naskban.log", settings.Logging.FileOutput.Path)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFromFileParsesDurationsAndLists(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFromFile(writeConfig(t, `
database:
  slowquerythreshold: 2s
ganjoor:
  apiurl: https://api.example.org/
  cachettl: 90m
notification:
  enabled: true
  urls:
    - generic://hooks.example.org/naskban
  timeout: 3s
`))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, settings.Database.SlowQueryThreshold)
	assert.Equal(t, 90*time.Minute, settings.Ganjoor.CacheTTL)
	assert.Equal(t, "https://api.example.org", settings.Ganjoor.APIURL, "trailing slash is trimmed")
	assert.Equal(t, []string{"generic://hooks.example.org/naskban"}, settings.Notification.URLs)
	assert.Equal(t, 3*time.Second, settings.Notification.Timeout)
}

func TestLoadFromFileRejectsInvalidSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFromFile(writeConfig(t, "database:\n  type: postgres\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.type")
}

func TestLoadFromFileMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NASKBAN_DATABASE_TYPE", "mysql")
	t.Setenv("NASKBAN_MYSQL_HOST", "db.internal")
	t.Setenv("NASKBAN_MYSQL_USERNAME", "naskban")
	t.Setenv("NASKBAN_MYSQL_PASSWORD", "secret")

	settings, err := LoadFromFile(writeConfig(t, "database:\n  type: sqlite\n"))
	require.NoError(t, err)

	assert.Equal(t, DatabaseMySQL, settings.Database.Type)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, "secret", settings.Database.MySQL.Password)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	settings := &Settings{Main: MainSettings{Name: "saved", SiteURL: "https://example.org"}}

	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "saved", decoded.Main.Name)
	assert.Equal(t, "https://example.org", decoded.Main.SiteURL)
}

func TestRedactedYAMLMasksSecrets(t *testing.T) {
	settings := &Settings{
		Database:     DatabaseSettings{MySQL: MySQLSettings{Password: "db-pass"}},
		MQTT:         MQTTSettings{Password: "mqtt-pass"},
		Sentry:       SentrySettings{DSN: "https://key@sentry.example.org/1"},
		Notification: NotificationSettings{URLs: []string{"telegram://token@telegram?chats=@c"}},
		Backup:       BackupSettings{Targets: []BackupTargetSettings{{Type: "ftp", Password: "ftp-pass"}}},
	}

	out, err := RedactedYAML(settings)
	require.NoError(t, err)

	text := string(out)
	for _, secret := range []string{"db-pass", "mqtt-pass", "sentry.example.org", "telegram://", "ftp-pass"} {
		assert.NotContains(t, text, secret)
	}
	assert.Contains(t, text, redactedValue)
	assert.Equal(t, "db-pass", settings.Database.MySQL.Password, "original settings are untouched")
	assert.Equal(t, "telegram://token@telegram?chats=@c", settings.Notification.URLs[0])
	assert.Equal(t, "ftp-pass", settings.Backup.Targets[0].Password)
}
