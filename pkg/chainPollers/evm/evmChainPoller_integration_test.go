package EVMChainPoller

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/memory"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contractStore/inMemoryContractStore"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/eventWriter"
	"github.com/Layr-Labs/lending-indexer/pkg/logger"
	"github.com/Layr-Labs/lending-indexer/pkg/tokenMetadata"
	"github.com/Layr-Labs/lending-indexer/pkg/transactionLogParser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoRPC(t *testing.T) string {
	t.Helper()
	rpcURL := os.Getenv("ETHEREUM_NODE_URL")
	if rpcURL == "" {
		t.Skip("ETHEREUM_NODE_URL not set, skipping integration test")
	}
	return rpcURL
}

func newMainnetClient(t *testing.T, ctx context.Context, rpcURL string) *ethereum.EthereumClient {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)
	client, err := ethereum.NewEthereumClient(ctx, &ethereum.EthereumClientConfig{
		BaseUrl:   rpcURL,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	chainId, err := client.ChainId(ctx)
	require.NoError(t, err)
	if config.ChainId(chainId) != config.ChainId_EthereumMainnet {
		t.Skipf("ETHEREUM_NODE_URL points at chain %d, integration tests expect mainnet", chainId)
	}
	return client
}

func TestIntegration_ResolveReserves_Mainnet(t *testing.T) {
	rpcURL := skipIfNoRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := newMainnetClient(t, ctx, rpcURL)
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)

	contractStore := inMemoryContractStore.NewInMemoryContractStore(contracts.DefaultContracts(), l)
	dataProvider, err := contractStore.GetContractByNameForChainId(contracts.ContractName_PoolDataProvider, config.ChainId_EthereumMainnet)
	require.NoError(t, err)

	resolver := tokenMetadata.NewResolver(client, &tokenMetadata.ResolverConfig{DataProviderAddress: dataProvider.Address}, l)
	cache, err := resolver.Resolve(ctx)
	require.NoError(t, err)
	assert.Greater(t, cache.Len(), 0)

	usdc, ok := cache.Lookup("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	require.True(t, ok, "USDC is a mainnet reserve")
	assert.Equal(t, "USDC", usdc.Symbol)
	assert.Equal(t, uint8(6), usdc.Decimals)
}

func TestIntegration_RunOnce_Mainnet(t *testing.T) {
	rpcURL := skipIfNoRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := newMainnetClient(t, ctx, rpcURL)
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)

	store := memory.NewInMemoryEventStore()
	poller := NewEVMChainPoller(
		client,
		transactionLogParser.NewTransactionLogParser(contracts.MustPoolAbi(), l),
		inMemoryContractStore.NewInMemoryContractStore(contracts.DefaultContracts(), l),
		&EVMChainPollerConfig{
			ChainId:     config.ChainId_EthereumMainnet,
			PoolAddress: "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
			Lookback:    20,
		},
		tokenMetadata.NewResolver(client, &tokenMetadata.ResolverConfig{
			DataProviderAddress: "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3",
		}, l),
		store,
		eventWriter.NewEventWriter(store, nil, nil, l),
		nil,
		l,
	)

	result, err := poller.RunOnce(ctx)
	require.NoError(t, err)
	t.Logf("Blocks %d-%d: %d logs, %d inserted, %d degraded",
		result.FromBlock, result.ToBlock, result.LogCount, result.Inserted, result.Degraded)

	watermark, err := store.GetLastProcessedBlock(ctx, config.ChainId_EthereumMainnet)
	require.NoError(t, err)
	assert.Equal(t, result.ToBlock, watermark)

	events, err := store.ListRecentEvents(ctx, 50)
	require.NoError(t, err)
	for _, e := range events {
		assert.NotEmpty(t, e.User)
		assert.NotEmpty(t, e.Reserve)
		assert.Contains(t, e.Amount, ".")
		assert.NotZero(t, e.Timestamp)
	}
}
