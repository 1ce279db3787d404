package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/Layr-Labs/lending-indexer/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single ingestion tick and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})

		if err := Config.Validate(); err != nil {
			log.Sugar().Errorw("Invalid configuration", "error", err)
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		idx, err := buildIndexer(ctx, Config, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := idx.Close(); err != nil {
				log.Sugar().Errorw("Failed to close store", zap.Error(err))
			}
		}()

		result, err := idx.poller.RunOnce(ctx)
		if err != nil {
			log.Sugar().Errorw("Tick failed", zap.Error(err))
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}
