package mocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/ethereum/go-ethereum/common"
)

// Reserve describes one reserve served by FakeDataProvider.
type Reserve struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	// FailConfig makes getReserveConfigurationData revert for this reserve
	FailConfig bool
}

type tokenData struct {
	Symbol       string
	TokenAddress common.Address
}

// FakeDataProvider answers eth_call payloads for the pool data provider. Use it with
// MockClient.EXPECT().CallContract(...).DoAndReturn(fake.Call).
type FakeDataProvider struct {
	Reserves     []Reserve
	FailReserves bool
}

func (f *FakeDataProvider) Call(_ context.Context, _ string, data []byte) ([]byte, error) {
	parsed := contracts.MustPoolDataProviderAbi()
	if len(data) < 4 {
		return nil, errors.New("execution reverted")
	}

	listMethod := parsed.Methods["getAllReservesTokens"]
	configMethod := parsed.Methods["getReserveConfigurationData"]

	switch {
	case bytes.Equal(data[:4], listMethod.ID):
		if f.FailReserves {
			return nil, errors.New("execution reverted")
		}
		tokens := make([]tokenData, 0, len(f.Reserves))
		for _, r := range f.Reserves {
			tokens = append(tokens, tokenData{Symbol: r.Symbol, TokenAddress: r.Address})
		}
		return listMethod.Outputs.Pack(tokens)

	case bytes.Equal(data[:4], configMethod.ID):
		args, err := configMethod.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		asset := args[0].(common.Address)
		for _, r := range f.Reserves {
			if r.Address != asset {
				continue
			}
			if r.FailConfig {
				return nil, errors.New("execution reverted")
			}
			return configMethod.Outputs.Pack(
				big.NewInt(int64(r.Decimals)), big.NewInt(8000), big.NewInt(8250), big.NewInt(10500), big.NewInt(1000),
				true, true, false, true, false,
			)
		}
		return nil, fmt.Errorf("unknown reserve %s", asset.Hex())
	}
	return nil, errors.New("execution reverted")
}
