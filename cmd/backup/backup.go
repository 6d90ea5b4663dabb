package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rmuseum/naskban-go/internal/app"
	"github.com/rmuseum/naskban-go/internal/backup"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
)

// Command creates the command group for entity store backups.
func Command(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create and inspect entity store backups",
	}
	cmd.AddCommand(runCommand(settings, info), listCommand(settings, info), inspectCommand())
	return cmd
}

func runCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Back up the entity store to every configured target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, settings, info, func(ctx context.Context, m *backup.Manager) error {
				md, err := m.Run(ctx)
				if md != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "backup %s (%d bytes, sha256 %s)\n", md.ID, md.Size, md.Checksum)
				}
				return err
			})
		},
	}
}

func listCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, settings, info, func(ctx context.Context, m *backup.Manager) error {
				infos, err := m.List(ctx)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTARGET\tCREATED\tSIZE")
				for _, i := range infos {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", i.ID, i.Target, i.Timestamp.Format("2006-01-02 15:04:05"), i.Size)
				}
				if flushErr := w.Flush(); flushErr != nil && err == nil {
					err = flushErr
				}
				return err
			})
		},
	}
}

func inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Print the metadata stored in a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := backup.ReadMetadata(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(md, "", "  ")
			if err != nil {
				return fmt.Errorf("error encoding metadata: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func withManager(cmd *cobra.Command, settings *conf.Settings, info buildinfo.BuildInfo, fn func(context.Context, *backup.Manager) error) error {
	if !settings.Backup.Enabled {
		return errors.New("backups are disabled, set backup.enabled in the configuration")
	}
	return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Backups)
	})
}
