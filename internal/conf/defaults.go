// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "naskban")
	viper.SetDefault("main.siteurl", "https://naskban.ir")
	viper.SetDefault("main.readonly", false)

	viper.SetDefault("database.type", DatabaseSQLite)
	viper.SetDefault("database.sqlite.path", "naskban.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.username", "")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "naskban")
	viper.SetDefault("database.slowquerythreshold", 500*time.Millisecond)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("ganjoor.apiurl", "https://api.ganjoor.net")
	viper.SetDefault("ganjoor.cachettl", 24*time.Hour)
	viper.SetDefault("ganjoor.ratelimit", 5.0)
	viper.SetDefault("ganjoor.burst", 5)

	viper.SetDefault("processing.maxbooktextbytes", 0)

	viper.SetDefault("jobqueue.workers", 2)
	viper.SetDefault("jobqueue.capacity", 100)
	viper.SetDefault("jobqueue.stoptimeout", 30*time.Second)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topicprefix", "naskban")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.timeout", 10*time.Second)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("backup.enabled", false)
	viper.SetDefault("backup.interval", 24*time.Hour)
	viper.SetDefault("backup.keep", 7)

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/naskban.log")
	viper.SetDefault("logging.file.level", "info")
}
