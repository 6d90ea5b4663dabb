package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmuseum/naskban-go/internal/app"
	"github.com/rmuseum/naskban-go/internal/buildinfo"
	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/processing"
)

// Command creates the command group for the OCR and AI revision queues.
func Command(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and reset the OCR and AI revision queues",
	}
	cmd.AddCommand(nextCommand(settings, info), resetCommand(settings, info))
	return cmd
}

func nextCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:       "next <ocr|ai>",
		Short:     "Claim the next book of a queue and print it as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(processing.KindOCR), string(processing.KindAI)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := processing.ParseKind(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
				book, err := a.Queue(kind).GetNext(ctx)
				if err != nil {
					return err
				}
				if book == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "queue %s is empty\n", kind)
					return nil
				}
				out, err := json.MarshalIndent(book, "", "  ")
				if err != nil {
					return fmt.Errorf("error encoding book: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func resetCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:       "reset <ocr|ai>",
		Short:     "Forget every claim of a queue so unprocessed books are handed out again",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(processing.KindOCR), string(processing.KindAI)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := processing.ParseKind(args[0])
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), settings, info, func(ctx context.Context, a *app.App) error {
				removed, err := a.Queue(kind).Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d %s queue markers\n", removed, kind)
				return nil
			})
		},
	}
}
