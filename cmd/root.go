package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "padscan",
	Short: "Revenue potential scanner for BKD Kota Mataram",
	Long:  "Detects parking lots, land conversions, and building expansions from satellite classification and OpenStreetMap, attributes them to SLS boundaries, and estimates the tax revenue at stake.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
