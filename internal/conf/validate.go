// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateDatabaseSettings,
		validateWebServerSettings,
		validateGanjoorSettings,
		validateProcessingSettings,
		validateJobQueueSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateSentrySettings,
		validateBackupSettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	if err := validateAbsoluteURL(s.Main.SiteURL); err != nil {
		return fmt.Errorf("main.siteurl: %w", err)
	}
	s.Main.SiteURL = strings.TrimRight(s.Main.SiteURL, "/")
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	s.Database.Type = strings.ToLower(s.Database.Type)

	switch s.Database.Type {
	case DatabaseSQLite:
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required when database.type is sqlite")
		}
	case DatabaseMySQL:
		m := s.Database.MySQL
		if m.Host == "" || m.Database == "" || m.Username == "" {
			return fmt.Errorf("database.mysql requires host, database and username")
		}
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("database.mysql.port must be between 1 and 65535, got %d", m.Port)
		}
	default:
		return fmt.Errorf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, s.Database.Type)
	}

	if s.Database.SlowQueryThreshold < 0 {
		return fmt.Errorf("database.slowquerythreshold must not be negative")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.WebServer.Listen); err != nil {
		return fmt.Errorf("webserver.listen must be host:port: %w", err)
	}
	return nil
}

func validateGanjoorSettings(s *Settings) error {
	if err := validateAbsoluteURL(s.Ganjoor.APIURL); err != nil {
		return fmt.Errorf("ganjoor.apiurl: %w", err)
	}
	s.Ganjoor.APIURL = strings.TrimRight(s.Ganjoor.APIURL, "/")

	if s.Ganjoor.RateLimit < 0 {
		return fmt.Errorf("ganjoor.ratelimit must not be negative")
	}
	if s.Ganjoor.RateLimit > 0 && s.Ganjoor.Burst < 1 {
		return fmt.Errorf("ganjoor.burst must be at least 1 when rate limiting is enabled")
	}
	if s.Ganjoor.CacheTTL < 0 {
		return fmt.Errorf("ganjoor.cachettl must not be negative")
	}
	return nil
}

func validateProcessingSettings(s *Settings) error {
	if s.Processing.MaxBookTextBytes < 0 {
		return fmt.Errorf("processing.maxbooktextbytes must not be negative")
	}
	return nil
}

func validateJobQueueSettings(s *Settings) error {
	if s.JobQueue.Workers < 1 {
		return fmt.Errorf("jobqueue.workers must be at least 1")
	}
	if s.JobQueue.Capacity < 1 {
		return fmt.Errorf("jobqueue.capacity must be at least 1")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if _, err := url.Parse(s.MQTT.Broker); err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return fmt.Errorf("notification.urls must contain at least one URL when notifications are enabled")
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}

func validateBackupSettings(s *Settings) error {
	b := s.Backup
	if !b.Enabled {
		return nil
	}
	if s.Database.Type != DatabaseSQLite {
		return fmt.Errorf("backup requires database.type %q, got %q", DatabaseSQLite, s.Database.Type)
	}
	if b.Interval < 0 {
		return fmt.Errorf("backup.interval must not be negative")
	}
	if b.Keep < 1 {
		return fmt.Errorf("backup.keep must be at least 1")
	}
	if len(b.Targets) == 0 {
		return fmt.Errorf("backup.targets must contain at least one target when backups are enabled")
	}
	for i, t := range b.Targets {
		switch strings.ToLower(t.Type) {
		case BackupTargetLocal:
			if t.Path == "" {
				return fmt.Errorf("backup.targets[%d].path is required for local targets", i)
			}
		case BackupTargetSFTP, BackupTargetFTP:
			if t.Host == "" || t.Username == "" {
				return fmt.Errorf("backup.targets[%d] requires host and username", i)
			}
			if t.Port < 0 || t.Port > 65535 {
				return fmt.Errorf("backup.targets[%d].port must be between 0 and 65535, got %d", i, t.Port)
			}
		default:
			return fmt.Errorf("backup.targets[%d].type must be local, sftp or ftp, got %q", i, t.Type)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
