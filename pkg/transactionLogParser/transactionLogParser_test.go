package transactionLogParser

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/mocks"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	poolAddress = "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2"
	weth        = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newParser() *TransactionLogParser {
	return NewTransactionLogParser(contracts.MustPoolAbi(), zap.NewNop())
}

func TestDecodeLog_Supply_InterleavedIndexedArguments(t *testing.T) {
	raw, err := mocks.PoolLog(contracts.EventName_Supply, map[string]interface{}{
		"reserve":      weth,
		"user":         alice,
		"onBehalfOf":   bob,
		"amount":       big.NewInt(1_500_000),
		"referralCode": uint16(7),
	}, poolAddress, 1003, "0xaaa", 2)
	require.NoError(t, err)

	decoded, err := newParser().DecodeLog(raw)
	require.NoError(t, err)

	assert.Equal(t, contracts.EventName_Supply, decoded.EventName)
	assert.Equal(t, uint64(2), decoded.LogIndex)
	assert.Equal(t, common.HexToAddress(poolAddress).Hex(), decoded.Address)

	reserve, err := decoded.AddressValue("reserve")
	require.NoError(t, err)
	assert.Equal(t, weth, reserve)

	user, err := decoded.AddressValue("user")
	require.NoError(t, err)
	assert.Equal(t, alice, user)

	onBehalfOf, err := decoded.AddressValue("onBehalfOf")
	require.NoError(t, err)
	assert.Equal(t, bob, onBehalfOf)

	amount, err := decoded.BigIntValue("amount")
	require.NoError(t, err)
	assert.Equal(t, "1500000", amount.String())

	code, ok := decoded.Value("referralCode")
	require.True(t, ok)
	assert.Equal(t, uint16(7), code)
}

func TestDecodeLog_LiquidationCall(t *testing.T) {
	raw, err := mocks.PoolLog(contracts.EventName_LiquidationCall, map[string]interface{}{
		"collateralAsset":            weth,
		"debtAsset":                  bob,
		"user":                       alice,
		"debtToCover":                big.NewInt(42),
		"liquidatedCollateralAmount": big.NewInt(43),
		"liquidator":                 bob,
		"receiveAToken":              true,
	}, poolAddress, 10, "0xbbb", 0)
	require.NoError(t, err)

	decoded, err := newParser().DecodeLog(raw)
	require.NoError(t, err)

	debt, err := decoded.BigIntValue("debtToCover")
	require.NoError(t, err)
	assert.Equal(t, int64(42), debt.Int64())

	liquidator, err := decoded.AddressValue("liquidator")
	require.NoError(t, err)
	assert.Equal(t, bob, liquidator)

	receive, ok := decoded.Value("receiveAToken")
	require.True(t, ok)
	assert.Equal(t, true, receive)
}

func TestDecodeLog_UnknownTopic(t *testing.T) {
	raw := &ethereum.EthereumEventLog{
		Address: ethereum.EthereumHexString(poolAddress),
		Topics:  []ethereum.EthereumHexString{"0x0000000000000000000000000000000000000000000000000000000000000001"},
		Data:    "0x",
	}

	_, err := newParser().DecodeLog(raw)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = newParser().DecodeLog(&ethereum.EthereumEventLog{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeLog_MissingIndexedTopic(t *testing.T) {
	raw, err := mocks.PoolLog(contracts.EventName_Withdraw, map[string]interface{}{
		"reserve": weth,
		"user":    alice,
		"to":      bob,
		"amount":  big.NewInt(1),
	}, poolAddress, 1, "0xccc", 0)
	require.NoError(t, err)

	raw.Topics = raw.Topics[:2]
	_, err = newParser().DecodeLog(raw)
	assert.Error(t, err)
}

func TestDecodeLog_TruncatedData(t *testing.T) {
	raw, err := mocks.PoolLog(contracts.EventName_Withdraw, map[string]interface{}{
		"reserve": weth,
		"user":    alice,
		"to":      bob,
		"amount":  big.NewInt(1),
	}, poolAddress, 1, "0xccc", 0)
	require.NoError(t, err)

	raw.Data = "0x"
	_, err = newParser().DecodeLog(raw)
	assert.Error(t, err)
}

func TestDecodeLog_NoAbi(t *testing.T) {
	_, err := NewTransactionLogParser(nil, zap.NewNop()).DecodeLog(&ethereum.EthereumEventLog{})
	assert.Error(t, err)
}
