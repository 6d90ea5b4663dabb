package booktext

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rmuseum/naskban-go/internal/app"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// pollInterval is how often the job record is checked while waiting
const pollInterval = time.Second

// Command creates the command group for book text aggregation.
func Command(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booktext",
		Short: "Aggregate page text into book text",
	}
	cmd.AddCommand(fillCommand(settings, info))
	return cmd
}

func fillCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill missing book text from page text and wait for the job to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
				id, err := a.Filler.Start(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started job %s\n", id)

				ticker := time.NewTicker(pollInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-ticker.C:
					}
					job, err := a.Tracker.Get(ctx, id)
					if err != nil {
						return err
					}
					if job.EndTime != nil {
						return report(cmd, job)
					}
				}
			})
		},
	}

	cmd.Flags().IntVar(&settings.Processing.MaxBookTextBytes, "maxbytes", viper.GetInt("processing.maxbooktextbytes"), "Upper bound for aggregated book text, 0 means unbounded")
	if err := viper.BindPFlag("processing.maxbooktextbytes", cmd.Flags().Lookup("maxbytes")); err != nil {
		panic(fmt.Errorf("error binding flags: %w", err))
	}

	return cmd
}

func report(cmd *cobra.Command, job *entities.LongRunningJob) error {
	if !job.Succeeded {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Exception)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "job %s finished: %s\n", job.ID, job.Step)
	return nil
}
