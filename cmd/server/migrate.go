package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/logging"
	"github.com/yourorg/payment-gateway/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logging.Sync(log)

		db, err := storage.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = storage.Close(db) }()

		if err := storage.Migrate(db); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
