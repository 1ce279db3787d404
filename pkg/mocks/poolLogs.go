package mocks

import (
	"fmt"

	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PoolLog builds a raw pool event log the way a node would return it. args must carry a value
// for every input of the event, keyed by abi name.
func PoolLog(eventName string, args map[string]interface{}, poolAddress string, blockNumber uint64, txHash string, logIndex uint64) (*ethereum.EthereumEventLog, error) {
	event, ok := contracts.MustPoolAbi().Events[eventName]
	if !ok {
		return nil, fmt.Errorf("unknown pool event %s", eventName)
	}

	topics := []ethereum.EthereumHexString{ethereum.EthereumHexString(event.ID.Hex())}
	var dataValues []interface{}
	for _, input := range event.Inputs {
		v, ok := args[input.Name]
		if !ok {
			return nil, fmt.Errorf("%s: missing argument %s", eventName, input.Name)
		}
		if !input.Indexed {
			dataValues = append(dataValues, v)
			continue
		}
		hashes, err := abi.MakeTopics([]interface{}{v})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode topic %s: %w", eventName, input.Name, err)
		}
		topics = append(topics, ethereum.EthereumHexString(hashes[0][0].Hex()))
	}

	data, err := event.Inputs.NonIndexed().Pack(dataValues...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to pack data: %w", eventName, err)
	}

	return &ethereum.EthereumEventLog{
		Address:         ethereum.EthereumHexString(poolAddress),
		Topics:          topics,
		Data:            ethereum.EthereumHexString(hexutil.Encode(data)),
		BlockNumber:     ethereum.EthereumQuantity(blockNumber),
		TransactionHash: ethereum.EthereumHexString(txHash),
		LogIndex:        ethereum.EthereumQuantity(logIndex),
	}, nil
}
