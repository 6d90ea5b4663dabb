package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Main: MainSettings{Name: "naskban", SiteURL: "https://naskban.ir/"},
		Database: DatabaseSettings{
			Type:               DatabaseSQLite,
			SQLite:             SQLiteSettings{Path: "naskban.db"},
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		WebServer: WebServerSettings{Enabled: true, Listen: ":8080"},
		Ganjoor:   GanjoorSettings{APIURL: "https://api.ganjoor.net", RateLimit: 5, Burst: 5},
		JobQueue:  JobQueueSettings{Workers: 2, Capacity: 100},
	}
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	s := validSettings()
	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, "https://naskban.ir", s.Main.SiteURL)
}

func TestValidateSettingsCollectsEveryProblem(t *testing.T) {
	s := validSettings()
	s.Main.SiteURL = "naskban.ir"
	s.JobQueue.Workers = 0
	s.Sentry = SentrySettings{Enabled: true}

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestValidateSettingsCases(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "unknown database type",
			mutate:  func(s *Settings) { s.Database.Type = "oracle" },
			wantErr: "database.type",
		},
		{
			name:    "database type is case insensitive",
			mutate:  func(s *Settings) { s.Database.Type = "SQLite" },
			wantErr: "",
		},
		{
			name:    "sqlite without path",
			mutate:  func(s *Settings) { s.Database.SQLite.Path = "" },
			wantErr: "database.sqlite.path",
		},
		{
			name: "mysql without host",
			mutate: func(s *Settings) {
				s.Database.Type = DatabaseMySQL
				s.Database.MySQL = MySQLSettings{Port: 3306, Username: "u", Database: "d"}
			},
			wantErr: "database.mysql",
		},
		{
			name: "mysql port out of range",
			mutate: func(s *Settings) {
				s.Database.Type = DatabaseMySQL
				s.Database.MySQL = MySQLSettings{Host: "h", Port: 70000, Username: "u", Database: "d"}
			},
			wantErr: "database.mysql.port",
		},
		{
			name:    "listen without port",
			mutate:  func(s *Settings) { s.WebServer.Listen = "localhost" },
			wantErr: "webserver.listen",
		},
		{
			name: "listen ignored when web server disabled",
			mutate: func(s *Settings) {
				s.WebServer.Enabled = false
				s.WebServer.Listen = ""
			},
			wantErr: "",
		},
		{
			name:    "ganjoor url without scheme",
			mutate:  func(s *Settings) { s.Ganjoor.APIURL = "api.ganjoor.net" },
			wantErr: "ganjoor.apiurl",
		},
		{
			name:    "rate limit without burst",
			mutate:  func(s *Settings) { s.Ganjoor.Burst = 0 },
			wantErr: "ganjoor.burst",
		},
		{
			name:    "negative max book text",
			mutate:  func(s *Settings) { s.Processing.MaxBookTextBytes = -1 },
			wantErr: "processing.maxbooktextbytes",
		},
		{
			name:    "mqtt enabled without broker",
			mutate:  func(s *Settings) { s.MQTT.Enabled = true },
			wantErr: "mqtt.broker",
		},
		{
			name:    "notifications enabled without urls",
			mutate:  func(s *Settings) { s.Notification.Enabled = true },
			wantErr: "notification.urls",
		},
		{
			name: "backup with local target",
			mutate: func(s *Settings) {
				s.Backup = BackupSettings{Enabled: true, Keep: 3, Targets: []BackupTargetSettings{{Type: "local", Path: "backups"}}}
			},
			wantErr: "",
		},
		{
			name: "backup on mysql",
			mutate: func(s *Settings) {
				s.Database = DatabaseSettings{Type: DatabaseMySQL, MySQL: MySQLSettings{Host: "db", Port: 3306, Username: "u", Database: "naskban"}}
				s.Backup = BackupSettings{Enabled: true, Keep: 3, Targets: []BackupTargetSettings{{Type: "local", Path: "backups"}}}
			},
			wantErr: "backup requires database.type",
		},
		{
			name:    "backup without targets",
			mutate:  func(s *Settings) { s.Backup = BackupSettings{Enabled: true, Keep: 3} },
			wantErr: "backup.targets",
		},
		{
			name: "sftp target without host",
			mutate: func(s *Settings) {
				s.Backup = BackupSettings{Enabled: true, Keep: 3, Targets: []BackupTargetSettings{{Type: "sftp", Username: "naskban"}}}
			},
			wantErr: "backup.targets[0] requires host",
		},
		{
			name: "unknown backup target",
			mutate: func(s *Settings) {
				s.Backup = BackupSettings{Enabled: true, Keep: 3, Targets: []BackupTargetSettings{{Type: "gdrive"}}}
			},
			wantErr: "backup.targets[0].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
