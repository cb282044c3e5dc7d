// Package cli holds the taskflow command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	api "taskflow-backend/cmd/api"
	"taskflow-backend/pkg/config"
	"taskflow-backend/pkg/database"
	"taskflow-backend/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskflow",
		Short:         "Task manager backend with automated research and meeting prep",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(syncCmd())
	return rootCmd
}

// runtime holds what every command needs: config, logger and database
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *api.App
}

func bootstrap(ctx context.Context, withApp bool) (*runtime, error) {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := api.Migrate(db); err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: log}
	if withApp {
		rt.app, err = api.NewApp(ctx, cfg, db, log)
		if err != nil {
			return nil, err
		}
	}
	return rt, nil
}
