package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}
			defer rt.logger.Sync() //nolint:errcheck

			if err := rt.app.Start(ctx); err != nil {
				return err
			}
			defer rt.app.Close()

			return rt.app.Serve(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			rt.logger.Info("schema is up to date")
			return nil
		},
	}
}

var (
	planOwner       string
	planDescription string
)

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [title]",
		Short: "Show how a task would be classified and researched without saving anything",
		Long: `Classify a draft task and print the research plan it would get.

Examples:
  taskflow plan "Compare CRM tools for a 10 person team"
  taskflow plan "Intro call with Acme" --owner 3f2a... --description "pricing questions"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), true)
			if err != nil {
				return err
			}

			preview, err := rt.app.Research.Preview(cmd.Context(), planOwner, args[0], planDescription)
			if err != nil {
				return err
			}
			return printJSON(cmd, preview)
		},
	}

	cmd.Flags().StringVar(&planOwner, "owner", "", "owner id whose role hint biases classification")
	cmd.Flags().StringVarP(&planDescription, "description", "d", "", "task description")
	return cmd
}

var (
	syncOwner string
	syncFull  bool
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the calendar of one owner now",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, true)
			if err != nil {
				return err
			}

			run := rt.app.Sync.IncrementalSync
			if syncFull {
				run = rt.app.Sync.FullSync
			}
			res, err := run(ctx, syncOwner)
			if err != nil {
				return fmt.Errorf("sync failed for %s: %w", syncOwner, err)
			}
			rt.logger.Info("sync finished",
				zap.String("owner_id", syncOwner),
				zap.String("mode", string(res.Mode)),
				zap.Int("upserted", res.Upserted),
				zap.Int("cancelled", res.Cancelled),
			)
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVar(&syncOwner, "owner", "", "owner id to sync")
	cmd.Flags().BoolVar(&syncFull, "full", false, "ignore the stored cursor and re-read the whole window")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
