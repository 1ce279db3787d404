package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/Layr-Labs/lending-indexer/pkg/api"
	"github.com/Layr-Labs/lending-indexer/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recent stored events as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})

		store, err := openStore(Config, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Sugar().Errorw("Failed to close store", zap.Error(err))
			}
		}()

		limit := recentLimit
		if limit <= 0 || limit > api.MaxRecentLimit {
			limit = api.MaxRecentLimit
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		events, err := store.ListRecentEvents(ctx, limit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

func init() {
	recentCmd.Flags().IntVar(&recentLimit, "limit", api.DefaultRecentLimit, "number of events to print")
}
