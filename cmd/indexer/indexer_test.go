package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/indexerConfig"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveContracts(t *testing.T) {
	t.Run("mainnet defaults", func(t *testing.T) {
		cfg := indexerConfig.NewDefaultIndexerConfig()
		cs, err := newContractStore(cfg, zap.NewNop())
		require.NoError(t, err)
		pool, dataProvider, err := resolveContracts(cs, cfg.ChainId)
		require.NoError(t, err)
		assert.Equal(t, "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2", pool.Address)
		assert.Equal(t, "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3", dataProvider.Address)
	})

	t.Run("overrides for a chain without a known deployment", func(t *testing.T) {
		cfg := indexerConfig.NewDefaultIndexerConfig()
		cfg.ChainId = config.ChainId_EthereumSepolia
		cfg.PoolAddress = "0x6ae43d3271ff6888e7fc43fd7321a503ff738951"
		cfg.DataProviderAddress = "0x3e9708d80f7B3e43118013075F7e95CE3AB31F31"

		cs, err := newContractStore(cfg, zap.NewNop())
		require.NoError(t, err)
		pool, dataProvider, err := resolveContracts(cs, cfg.ChainId)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(cfg.PoolAddress).Hex(), pool.Address)
		assert.Equal(t, config.ChainId_EthereumSepolia, pool.ChainId)
		assert.Equal(t, common.HexToAddress(cfg.DataProviderAddress).Hex(), dataProvider.Address)

		_, err = pool.CombinedAbi()
		assert.NoError(t, err)

		byAddress, err := cs.GetContractByAddress(cfg.PoolAddress, config.ChainId_EthereumSepolia)
		require.NoError(t, err)
		assert.Equal(t, contracts.ContractName_Pool, byAddress.Name)
	})

	t.Run("unknown chain without overrides", func(t *testing.T) {
		cfg := indexerConfig.NewDefaultIndexerConfig()
		cfg.ChainId = config.ChainId_Base
		cs, err := newContractStore(cfg, zap.NewNop())
		require.NoError(t, err)
		_, _, err = resolveContracts(cs, cfg.ChainId)
		assert.ErrorContains(t, err, "set --pool-address")
	})
}

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *indexerConfig.IndexerConfig)
	}{
		{name: "memory", mutate: func(c *indexerConfig.IndexerConfig) {}},
		{name: "sqlite", mutate: func(c *indexerConfig.IndexerConfig) {
			c.StorageType = indexerConfig.StorageKind_Sqlite
			c.DatabaseDSN = filepath.Join(t.TempDir(), "events.db")
		}},
		{name: "badger", mutate: func(c *indexerConfig.IndexerConfig) {
			c.StorageType = indexerConfig.StorageKind_Badger
			c.BadgerDir = t.TempDir()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := indexerConfig.NewDefaultIndexerConfig()
			tt.mutate(cfg)

			store, err := openStore(cfg, zap.NewNop())
			require.NoError(t, err)
			require.NoError(t, store.SaveLastProcessedBlock(context.Background(), cfg.ChainId, 42))
			n, err := store.GetLastProcessedBlock(context.Background(), cfg.ChainId)
			require.NoError(t, err)
			assert.Equal(t, uint64(42), n)
			require.NoError(t, store.Close())
		})
	}

	cfg := indexerConfig.NewDefaultIndexerConfig()
	cfg.StorageType = "mongo"
	_, err := openStore(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildIndexer_RejectsUnknownChainBeforeDialing(t *testing.T) {
	cfg := indexerConfig.NewDefaultIndexerConfig()
	cfg.ChainId = config.ChainId_Arbitrum
	cfg.RpcUrl = "http://127.0.0.1:1"

	_, err := buildIndexer(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
