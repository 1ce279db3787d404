package EVMChainPoller

import (
	"fmt"

	"github.com/Layr-Labs/lending-indexer/pkg/amount"
	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/tokenMetadata"
	"github.com/Layr-Labs/lending-indexer/pkg/transactionLogParser/log"
)

// eventFields names the abi arguments that feed each Event field.
type eventFields struct {
	user       string
	onBehalfOf string
	reserve    string
	amount     string
}

var fieldsByKind = map[chainPoller.EventKind]eventFields{
	chainPoller.EventKind_Supply:          {user: "user", onBehalfOf: "onBehalfOf", reserve: "reserve", amount: "amount"},
	chainPoller.EventKind_Borrow:          {user: "user", onBehalfOf: "onBehalfOf", reserve: "reserve", amount: "amount"},
	chainPoller.EventKind_Repay:           {user: "user", onBehalfOf: "repayer", reserve: "reserve", amount: "amount"},
	chainPoller.EventKind_Withdraw:        {user: "user", onBehalfOf: "to", reserve: "reserve", amount: "amount"},
	chainPoller.EventKind_LiquidationCall: {user: "user", onBehalfOf: "liquidator", reserve: "debtAsset", amount: "debtToCover"},
}

// EventFromLog turns a decoded pool log into an Event. Symbol and precision come from cache,
// falling back to UNKNOWN/18. Timestamp is left for the caller.
func EventFromLog(decoded *log.DecodedLog, raw *ethereum.EthereumEventLog, cache *tokenMetadata.Cache) (*chainPoller.Event, error) {
	kind := chainPoller.EventKind(decoded.EventName)
	fields, ok := fieldsByKind[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported event %q", decoded.EventName)
	}

	user, err := decoded.AddressValue(fields.user)
	if err != nil {
		return nil, err
	}
	reserve, err := decoded.AddressValue(fields.reserve)
	if err != nil {
		return nil, err
	}
	rawAmount, err := decoded.BigIntValue(fields.amount)
	if err != nil {
		return nil, err
	}

	var onBehalfOf string
	if addr, err := decoded.AddressValue(fields.onBehalfOf); err == nil {
		onBehalfOf = addr.Hex()
	}

	token := cache.Get(reserve.Hex())
	return &chainPoller.Event{
		Type:            kind,
		User:            user.Hex(),
		OnBehalfOf:      onBehalfOf,
		Reserve:         reserve.Hex(),
		Symbol:          token.Symbol,
		Amount:          amount.Normalize(rawAmount, token.Decimals),
		BlockNumber:     raw.BlockNumber.Value(),
		TransactionHash: raw.TransactionHash.Value(),
		LogIndex:        raw.LogIndex.Value(),
	}, nil
}
