package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/lending-indexer/pkg/api"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/defillama"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/indexerConfig"
	"github.com/Layr-Labs/lending-indexer/pkg/logger"
	"github.com/Layr-Labs/lending-indexer/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the lending pool and serve the query API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: Config.Debug})
		sugar := log.Sugar()

		if err := Config.Validate(); err != nil {
			sugar.Errorw("Invalid configuration", "error", err)
			return err
		}

		sugar.Infow("Starting indexer...",
			zap.Uint("chainId", uint(Config.ChainId)),
			zap.String("storage", string(Config.StorageType)),
		)

		return runWithShutdown(func(ctx context.Context) (func(), error) {
			return startIndexer(ctx, Config, log)
		}, log)
	},
}

// runWithShutdown blocks until SIGINT or SIGTERM, then cancels the context and runs cleanup.
func runWithShutdown(startFunc func(ctx context.Context) (func(), error), logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanup, err := startFunc(ctx)
	if err != nil {
		return err
	}

	gracefulShutdownNotifier := shutdown.CreateGracefulShutdownChannel()
	done := make(chan bool)

	shutdown.ListenForShutdown(gracefulShutdownNotifier, done, func() {
		logger.Sugar().Info("Shutting down indexer...")
		cancel()
		cleanup()
	}, 10*time.Second, logger)

	return nil
}

func startIndexer(ctx context.Context, cfg *indexerConfig.IndexerConfig, logger *zap.Logger) (func(), error) {
	idx, err := buildIndexer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	remoteChainId, err := idx.client.ChainId(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	if config.ChainId(remoteChainId) != cfg.ChainId {
		_ = idx.Close()
		return nil, fmt.Errorf("rpc node is on chain %d but chain-id is %d", remoteChainId, cfg.ChainId)
	}

	tvl := defillama.NewClient(&defillama.ClientConfig{BaseUrl: cfg.TvlApiUrl}, logger)
	server := api.NewServer(&api.ServerConfig{
		Address: cfg.HttpAddress,
		ChainId: cfg.ChainId,
	}, idx.store, tvl, idx.metrics, logger)

	if err := idx.poller.Start(ctx); err != nil {
		_ = idx.Close()
		return nil, err
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := server.Start(ctx); err != nil {
			logger.Sugar().Fatalw("Query server failed", zap.Error(err))
		}
	}()

	return func() {
		<-serverDone
		if err := idx.Close(); err != nil {
			logger.Sugar().Errorw("Failed to close store", zap.Error(err))
		}
	}, nil
}
