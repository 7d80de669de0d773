package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskflow/api/internal/config"
	"taskflow/api/internal/logger"
	"taskflow/api/internal/store"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations",
		Long:  `The migrate command brings the datastore schema up to date, or to the version given with --version.`,
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	flags := cmd.Flags()
	flags.Int64("version", 0, "the version to migrate to (if omitted the latest schema will be used)")
	flags.Bool("down", false, "roll back every migration instead of migrating up")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(settings)
	log, err := logger.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	targetVersion, err := cmd.Flags().GetInt64("version")
	if err != nil {
		return err
	}
	down, err := cmd.Flags().GetBool("down")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := store.Open(ctx, cfg.DatastoreEngine, cfg.DatastoreURI, cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize database connection: %w", err)
	}
	defer db.Close()

	if down {
		if err := store.Rollback(ctx, db, cfg.DatastoreEngine); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		log.Info("rollback done", zap.String("engine", cfg.DatastoreEngine))
		return nil
	}

	version, err := store.Migrate(ctx, db, cfg.DatastoreEngine, targetVersion)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migration done", zap.String("engine", cfg.DatastoreEngine), zap.Int64("version", version))
	return nil
}
