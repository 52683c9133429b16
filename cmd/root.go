package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/younes-bami/hrcut-app/cmd/worker"
	"github.com/younes-bami/hrcut-app/internal/config"
	"github.com/younes-bami/hrcut-app/internal/logger"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:           "hrcut-app",
		Short:         "HrCut customer identity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}

// loadConfig loads and validates config, then initialises the global logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
