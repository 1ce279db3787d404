package main

import (
	"context"
	"fmt"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	EVMChainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers/evm"
	badgerStore "github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/badger"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/memory"
	sqlStore "github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/sql"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contractStore"
	"github.com/Layr-Labs/lending-indexer/pkg/contractStore/inMemoryContractStore"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/eventWriter"
	"github.com/Layr-Labs/lending-indexer/pkg/indexerConfig"
	"github.com/Layr-Labs/lending-indexer/pkg/metrics"
	"github.com/Layr-Labs/lending-indexer/pkg/tokenMetadata"
	"github.com/Layr-Labs/lending-indexer/pkg/transactionLogParser"
	"go.uber.org/zap"
)

type indexer struct {
	client  *ethereum.EthereumClient
	store   chainPoller.IEventStore
	poller  *EVMChainPoller.EVMChainPoller
	metrics *metrics.IndexerMetrics
}

func (i *indexer) Close() error {
	if i.client != nil {
		i.client.Close()
	}
	return i.store.Close()
}

func openStore(cfg *indexerConfig.IndexerConfig, logger *zap.Logger) (chainPoller.IEventStore, error) {
	switch cfg.StorageType {
	case indexerConfig.StorageKind_Memory:
		logger.Sugar().Warnw("Using in-memory storage, events and watermark are lost on restart")
		return memory.NewInMemoryEventStore(), nil
	case indexerConfig.StorageKind_Sqlite:
		return sqlStore.NewSqlEventStore(&sqlStore.SqlEventStoreConfig{Driver: sqlStore.Driver_Sqlite, DSN: cfg.DatabaseDSN}, logger)
	case indexerConfig.StorageKind_Postgres:
		return sqlStore.NewSqlEventStore(&sqlStore.SqlEventStoreConfig{Driver: sqlStore.Driver_Postgres, DSN: cfg.DatabaseDSN}, logger)
	case indexerConfig.StorageKind_Badger:
		return badgerStore.NewBadgerEventStore(&badgerStore.BadgerEventStoreConfig{Dir: cfg.BadgerDir}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.StorageType)
	}
}

// newContractStore seeds the known deployments and applies the configured address overrides.
func newContractStore(cfg *indexerConfig.IndexerConfig, logger *zap.Logger) (contractStore.IContractStore, error) {
	cs := inMemoryContractStore.NewInMemoryContractStore(contracts.DefaultContracts(), logger)
	chainIds := []config.ChainId{cfg.ChainId}

	if cfg.PoolAddress != "" {
		err := cs.OverrideContract(contracts.ContractName_Pool, chainIds, &contracts.Contract{
			Address:     cfg.PoolAddress,
			AbiVersions: []string{contracts.PoolAbi},
		})
		if err != nil {
			return nil, err
		}
	}
	if cfg.DataProviderAddress != "" {
		err := cs.OverrideContract(contracts.ContractName_PoolDataProvider, chainIds, &contracts.Contract{
			Address:     cfg.DataProviderAddress,
			AbiVersions: []string{contracts.PoolDataProviderAbi},
		})
		if err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// resolveContracts returns the pool and data provider for the chain.
func resolveContracts(cs contractStore.IContractStore, chainId config.ChainId) (*contracts.Contract, *contracts.Contract, error) {
	pool, err := cs.GetContractByNameForChainId(contracts.ContractName_Pool, chainId)
	if err != nil {
		return nil, nil, fmt.Errorf("no pool known for chain %d, set --%s: %w", chainId, indexerConfig.PoolAddress, err)
	}
	dataProvider, err := cs.GetContractByNameForChainId(contracts.ContractName_PoolDataProvider, chainId)
	if err != nil {
		return nil, nil, fmt.Errorf("no data provider known for chain %d, set --%s: %w", chainId, indexerConfig.DataProviderAddress, err)
	}
	return pool, dataProvider, nil
}

func buildIndexer(ctx context.Context, cfg *indexerConfig.IndexerConfig, logger *zap.Logger) (*indexer, error) {
	cs, err := newContractStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, dataProvider, err := resolveContracts(cs, cfg.ChainId)
	if err != nil {
		return nil, err
	}
	poolAbi, err := pool.CombinedAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool abi: %w", err)
	}
	eventKinds, err := cfg.ParsedEventKinds()
	if err != nil {
		return nil, err
	}

	client, err := ethereum.NewEthereumClient(ctx, &ethereum.EthereumClientConfig{
		BaseUrl:        cfg.RpcUrl,
		BlockType:      cfg.BlockType,
		RequestTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StorageType, err)
	}

	m := metrics.NewIndexerMetrics()
	writer := eventWriter.NewEventWriter(store, &eventWriter.EventWriterConfig{
		WriteConcurrency: cfg.WriteConcurrency,
	}, m, logger)

	resolver := tokenMetadata.NewResolver(client, &tokenMetadata.ResolverConfig{
		DataProviderAddress: dataProvider.Address,
	}, logger)

	poller := EVMChainPoller.NewEVMChainPoller(
		client,
		transactionLogParser.NewTransactionLogParser(poolAbi, logger),
		cs,
		&EVMChainPoller.EVMChainPollerConfig{
			ChainId:         cfg.ChainId,
			PollingInterval: cfg.PollingIntervalDuration(),
			PoolAddress:     pool.Address,
			EventKinds:      eventKinds,
			Lookback:        cfg.LookbackBlocks,
			Confirmations:   cfg.Confirmations,
			MaxBlockRange:   cfg.MaxBlockRange,
		},
		resolver,
		store,
		writer,
		m,
		logger,
	)

	return &indexer{
		client:  client,
		store:   store,
		poller:  poller,
		metrics: m,
	}, nil
}
