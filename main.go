package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/internal/config"
	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/db"
)

const VERSION = "0.1.0"

var (
	cfg      *config.Config
	envFiles []string
)

var rootCmd = &cobra.Command{
	Use:           "rrna16s",
	Short:         "16S rRNA analysis service",
	Long:          "Accepts batches of 16S sequences, runs the BCCDC-PHL/16s-nf pipeline on them in the background and serves the BLAST results.",
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var foundDotenv bool
		var err error
		cfg, foundDotenv, err = config.Load(envFiles...)
		if err != nil {
			return err
		}

		if err := logger.InitLogger(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		if !foundDotenv {
			logger.Warn("No .env found, using local environment")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv file(s) to load (default .env)")
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync() // Make sure that the buffered is flushed.
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured database.
func openStore(ctx context.Context, c *config.Config) (*db.Store, error) {
	if c.DatabaseDriver == "sqlite" {
		logger.Info("Open database on", zap.String("path", c.SQLitePath()))
		return db.OpenSQLite(ctx, c.SQLitePath())
	}
	logger.Info("Open database", zap.String("driver", c.DatabaseDriver))
	return db.Open(ctx, c.DatabaseDriver, c.DatabaseURI)
}
