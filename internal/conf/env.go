// env.go - environment variable overrides for naskban settings
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "NASKBAN_DEBUG", validateEnvBool},
		{"main.siteurl", "NASKBAN_SITE_URL", validateEnvURL},
		{"main.readonly", "NASKBAN_READONLY", validateEnvBool},

		// Database
		{"database.type", "NASKBAN_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "NASKBAN_SQLITE_PATH", nil},
		{"database.mysql.host", "NASKBAN_MYSQL_HOST", nil},
		{"database.mysql.port", "NASKBAN_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "NASKBAN_MYSQL_USERNAME", nil},
		{"database.mysql.password", "NASKBAN_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "NASKBAN_MYSQL_DATABASE", nil},

		{"webserver.listen", "NASKBAN_LISTEN", nil},
		{"ganjoor.apiurl", "NASKBAN_GANJOOR_API_URL", validateEnvURL},

		{"mqtt.broker", "NASKBAN_MQTT_BROKER", validateEnvURL},
		{"mqtt.username", "NASKBAN_MQTT_USERNAME", nil},
		{"mqtt.password", "NASKBAN_MQTT_PASSWORD", nil},

		{"sentry.dsn", "NASKBAN_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("database type must be %q or %q", DatabaseSQLite, DatabaseMySQL)
	}
}
