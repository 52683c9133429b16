package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/app"
	"github.com/younes-bami/hrcut-app/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create indexes (mongo) or tables (mysql, clickhouse)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := a.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		logger.Log.Info("migration complete",
			zap.String("store", cfg.Store.Driver),
			zap.Bool("clickhouse", cfg.ClickHouse.DSN != ""))
		return nil
	},
}
