package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rmuseum/naskban-go/cmd/backup"
	"github.com/rmuseum/naskban-go/cmd/booktext"
	"github.com/rmuseum/naskban-go/cmd/links"
	"github.com/rmuseum/naskban-go/cmd/queue"
	"github.com/rmuseum/naskban-go/cmd/serve"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "naskban",
		Short:         "Naskban digital library backend",
		Version:       info.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings, info),
		queue.Command(settings, info),
		booktext.Command(settings, info),
		links.Command(settings, info),
		backup.Command(settings, info),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flags were parsed into settings; validate the merged result
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Database.Type, "database", viper.GetString("database.type"), "Entity store backend (sqlite or mysql)")
	rootCmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "sqlitepath", viper.GetString("database.sqlite.path"), "Path to the SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&settings.Main.ReadOnly, "readonly", viper.GetBool("main.readonly"), "Reject user-generated writes")

	return bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"debug":                "debug",
		"database.type":        "database",
		"database.sqlite.path": "sqlitepath",
		"main.readonly":        "readonly",
	})
}

// bindFlags binds flags to their configuration keys so a flag set on the
// command line wins over the config file
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
