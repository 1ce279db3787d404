package ethereum

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type BlockType string

const (
	BlockType_Latest    BlockType = "latest"
	BlockType_Safe      BlockType = "safe"
	BlockType_Finalized BlockType = "finalized"
)

var SupportedBlockTypes = []BlockType{
	BlockType_Latest,
	BlockType_Safe,
	BlockType_Finalized,
}

// EthereumQuantity is a JSON-RPC hex quantity ("0x1a").
type EthereumQuantity uint64

func (eq EthereumQuantity) Value() uint64 {
	return uint64(eq)
}

func (eq EthereumQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeUint64(uint64(eq)))
}

func (eq *EthereumQuantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("quantity must be a hex string: %w", err)
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	*eq = EthereumQuantity(v)
	return nil
}

type EthereumHexString string

func (ehs EthereumHexString) Value() string {
	return string(ehs)
}

type EthereumBlock struct {
	Number     EthereumQuantity  `json:"number"`
	Hash       EthereumHexString `json:"hash"`
	ParentHash EthereumHexString `json:"parentHash"`
	Timestamp  EthereumQuantity  `json:"timestamp"`
	ChainId    config.ChainId    `json:"-"`
}

type EthereumEventLog struct {
	Address          EthereumHexString   `json:"address"`
	Topics           []EthereumHexString `json:"topics"`
	Data             EthereumHexString   `json:"data"`
	BlockNumber      EthereumQuantity    `json:"blockNumber"`
	BlockHash        EthereumHexString   `json:"blockHash"`
	TransactionHash  EthereumHexString   `json:"transactionHash"`
	TransactionIndex EthereumQuantity    `json:"transactionIndex"`
	LogIndex         EthereumQuantity    `json:"logIndex"`
	Removed          bool                `json:"removed"`
}

// Topic0 returns the lowercased event signature hash, or "" for anonymous logs.
func (l *EthereumEventLog) Topic0() string {
	if len(l.Topics) == 0 {
		return ""
	}
	return strings.ToLower(l.Topics[0].Value())
}
