package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var ErrBlockNotFound = errors.New("block not found")

// Client is the read-only subset of the JSON-RPC API the indexer depends on.
type Client interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
	GetBlockByNumber(ctx context.Context, blockNumber uint64) (*EthereumBlock, error)
	GetLogs(ctx context.Context, address string, topics [][]string, fromBlock uint64, toBlock uint64) ([]*EthereumEventLog, error)
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	ChainId(ctx context.Context) (uint64, error)
}

type EthereumClientConfig struct {
	BaseUrl        string
	BlockType      BlockType
	RequestTimeout time.Duration
}

type EthereumClient struct {
	rpcClient *rpc.Client
	config    *EthereumClientConfig
	logger    *zap.Logger
}

func NewEthereumClient(ctx context.Context, cfg *EthereumClientConfig, logger *zap.Logger) (*EthereumClient, error) {
	if cfg == nil || cfg.BaseUrl == "" {
		return nil, fmt.Errorf("ethereum client requires a base url")
	}
	if cfg.BlockType == "" {
		cfg.BlockType = BlockType_Latest
	}
	rpcClient, err := rpc.DialContext(ctx, cfg.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum rpc: %w", err)
	}
	return &EthereumClient{
		rpcClient: rpcClient,
		config:    cfg,
		logger:    logger,
	}, nil
}

func (c *EthereumClient) Close() {
	c.rpcClient.Close()
}

func (c *EthereumClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	err := c.rpcClient.CallContext(ctx, result, method, args...)
	c.logger.Sugar().Debugw("RPC call",
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

func (c *EthereumClient) ChainId(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetLatestBlock returns the head block number for the configured block type.
func (c *EthereumClient) GetLatestBlock(ctx context.Context) (uint64, error) {
	if c.config.BlockType == BlockType_Latest {
		var num hexutil.Uint64
		if err := c.call(ctx, &num, "eth_blockNumber"); err != nil {
			return 0, err
		}
		return uint64(num), nil
	}

	var block *EthereumBlock
	if err := c.call(ctx, &block, "eth_getBlockByNumber", string(c.config.BlockType), false); err != nil {
		return 0, err
	}
	if block == nil {
		return 0, fmt.Errorf("%s block: %w", c.config.BlockType, ErrBlockNotFound)
	}
	return block.Number.Value(), nil
}

func (c *EthereumClient) GetBlockByNumber(ctx context.Context, blockNumber uint64) (*EthereumBlock, error) {
	var block *EthereumBlock
	if err := c.call(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(blockNumber), false); err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("block %d: %w", blockNumber, ErrBlockNotFound)
	}
	return block, nil
}

func (c *EthereumClient) GetLogs(ctx context.Context, address string, topics [][]string, fromBlock uint64, toBlock uint64) ([]*EthereumEventLog, error) {
	var logs []*EthereumEventLog
	if err := c.call(ctx, &logs, "eth_getLogs", GetLogsFilter(address, topics, fromBlock, toBlock)); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *EthereumClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	var result hexutil.Bytes
	msg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Encode(data),
	}
	if err := c.call(ctx, &result, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetLogsFilter builds the eth_getLogs filter object. Each inner topic slice is an OR-set
// for that topic position; an empty inner slice matches anything.
func GetLogsFilter(address string, topics [][]string, fromBlock uint64, toBlock uint64) map[string]interface{} {
	filter := map[string]interface{}{
		"address":   address,
		"fromBlock": hexutil.EncodeUint64(fromBlock),
		"toBlock":   hexutil.EncodeUint64(toBlock),
	}
	if len(topics) > 0 {
		encoded := make([]interface{}, len(topics))
		for i, position := range topics {
			switch len(position) {
			case 0:
				encoded[i] = nil
			case 1:
				encoded[i] = position[0]
			default:
				encoded[i] = position
			}
		}
		filter["topics"] = encoded
	}
	return filter
}
