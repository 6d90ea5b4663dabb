package links

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rmuseum/naskban-go/internal/app"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
)

// Command creates the command group for Ganjoor link synchronization.
func Command(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Synchronize approved Ganjoor links",
	}
	cmd.AddCommand(unsyncedCommand(settings, info), syncCommand(settings, info))
	return cmd
}

func unsyncedCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "unsynced",
		Short: "Print approved links not yet synchronized as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
				links, err := a.Links.Unsynced(ctx)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(links, "", "  ")
				if err != nil {
					return fmt.Errorf("error encoding links: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func syncCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <link-id>...",
		Short: "Mark links as synchronized with the poem corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid link id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
				for _, id := range ids {
					if err := a.Links.Synchronize(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "synchronized %s\n", id)
				}
				return nil
			})
		},
	}
}
