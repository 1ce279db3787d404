package transactionLogParser

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/transactionLogParser/log"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

var ErrUnknownEvent = errors.New("log does not match any event in the abi")

type LogParser interface {
	DecodeLog(lg *ethereum.EthereumEventLog) (*log.DecodedLog, error)
}

// TransactionLogParser decodes raw logs against a single contract abi.
type TransactionLogParser struct {
	abi    *abi.ABI
	logger *zap.Logger
}

func NewTransactionLogParser(contractAbi *abi.ABI, logger *zap.Logger) *TransactionLogParser {
	return &TransactionLogParser{
		abi:    contractAbi,
		logger: logger,
	}
}

// DecodeLog resolves the event by topic0, reads indexed arguments from the remaining topics in
// declaration order and unpacks the rest from the log data.
func (tlp *TransactionLogParser) DecodeLog(lg *ethereum.EthereumEventLog) (*log.DecodedLog, error) {
	if tlp.abi == nil {
		return nil, errors.New("no abi provided for decoding log")
	}
	topic0 := lg.Topic0()
	if topic0 == "" {
		return nil, fmt.Errorf("log %s:%d has no topics: %w", lg.TransactionHash.Value(), lg.LogIndex.Value(), ErrUnknownEvent)
	}

	event, err := tlp.abi.EventByID(common.HexToHash(topic0))
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topic0, ErrUnknownEvent)
	}

	decoded := &log.DecodedLog{
		Address:    common.HexToAddress(lg.Address.Value()).Hex(),
		LogIndex:   lg.LogIndex.Value(),
		EventName:  event.RawName,
		Arguments:  make([]log.Argument, len(event.Inputs)),
		OutputData: make(map[string]interface{}),
	}

	topicIdx := 1
	for i, input := range event.Inputs {
		decoded.Arguments[i] = log.Argument{
			Name:    input.Name,
			Type:    input.Type.String(),
			Indexed: input.Indexed,
		}
		if !input.Indexed {
			continue
		}
		if topicIdx >= len(lg.Topics) {
			return nil, fmt.Errorf("%s: expected topic for indexed argument %q", event.Name, input.Name)
		}
		value, err := parseLogValueForType(input, lg.Topics[topicIdx].Value())
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse indexed argument %q: %w", event.Name, input.Name, err)
		}
		decoded.Arguments[i].Value = value
		topicIdx++
	}

	data, err := hexutil.Decode(dataOrEmpty(lg.Data.Value()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode log data: %w", event.Name, err)
	}
	if len(event.Inputs.NonIndexed()) > 0 {
		if err := tlp.abi.UnpackIntoMap(decoded.OutputData, event.Name, data); err != nil {
			tlp.logger.Sugar().Debugw("Failed to unpack log data",
				zap.String("eventName", event.Name),
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%s: failed to unpack data: %w", event.Name, err)
		}
		for i, arg := range decoded.Arguments {
			if !arg.Indexed {
				decoded.Arguments[i].Value = decoded.OutputData[arg.Name]
			}
		}
	}
	return decoded, nil
}

func dataOrEmpty(data string) string {
	if data == "" {
		return "0x"
	}
	return data
}

func parseLogValueForType(argument abi.Argument, value string) (interface{}, error) {
	valueBytes, err := hexutil.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(valueBytes) != common.HashLength {
		return nil, fmt.Errorf("topic must be %d bytes, got %d", common.HashLength, len(valueBytes))
	}
	switch argument.Type.T {
	case abi.IntTy, abi.UintTy:
		return abi.ReadInteger(argument.Type, valueBytes)
	case abi.BoolTy:
		return readBool(valueBytes)
	case abi.AddressTy:
		return common.BytesToAddress(valueBytes), nil
	default:
		// dynamic types are hashed into the topic
		return value, nil
	}
}

var errBadBool = errors.New("abi: improperly encoded boolean value")

func readBool(word []byte) (bool, error) {
	for _, b := range word[:31] {
		if b != 0 {
			return false, errBadBool
		}
	}
	switch word[31] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errBadBool
	}
}
