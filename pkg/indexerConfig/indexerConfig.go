package indexerConfig

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

const (
	EnvPrefix = "INDEXER_"

	// LegacyRpcUrlEnv is accepted as a fallback for rpc-url
	LegacyRpcUrlEnv = "ETHEREUM_NODE_URL"

	Debug               = "debug"
	ChainId             = "chain-id"
	RpcUrl              = "rpc-url"
	BlockType           = "block-type"
	PoolAddress         = "pool-address"
	DataProviderAddress = "data-provider-address"
	PollingInterval     = "polling-interval"
	LookbackBlocks      = "lookback-blocks"
	Confirmations       = "confirmations"
	MaxBlockRange       = "max-block-range"
	EventKinds          = "event-kinds"
	WriteConcurrency    = "write-concurrency"
	StorageType         = "storage-type"
	DatabaseDSN         = "database-dsn"
	BadgerDir           = "badger-dir"
	HttpAddress         = "http-address"
	TvlApiUrl           = "tvl-api-url"
)

type StorageKind string

const (
	StorageKind_Memory   StorageKind = "memory"
	StorageKind_Sqlite   StorageKind = "sqlite"
	StorageKind_Postgres StorageKind = "postgres"
	StorageKind_Badger   StorageKind = "badger"
)

var SupportedStorageKinds = []StorageKind{
	StorageKind_Memory,
	StorageKind_Sqlite,
	StorageKind_Postgres,
	StorageKind_Badger,
}

type IndexerConfig struct {
	Debug   bool           `json:"debug" yaml:"debug"`
	ChainId config.ChainId `json:"chain_id" yaml:"chain_id"`
	RpcUrl  string         `json:"rpc_url" yaml:"rpc_url"`

	// BlockType is the head tag the poller follows
	BlockType ethereum.BlockType `json:"block_type" yaml:"block_type"`

	// PoolAddress and DataProviderAddress override the known deployment for ChainId
	PoolAddress         string `json:"pool_address" yaml:"pool_address"`
	DataProviderAddress string `json:"data_provider_address" yaml:"data_provider_address"`

	// PollingInterval is in seconds
	PollingInterval  int      `json:"polling_interval" yaml:"polling_interval"`
	LookbackBlocks   uint64   `json:"lookback_blocks" yaml:"lookback_blocks"`
	Confirmations    uint64   `json:"confirmations" yaml:"confirmations"`
	MaxBlockRange    uint64   `json:"max_block_range" yaml:"max_block_range"`
	EventKinds       []string `json:"event_kinds" yaml:"event_kinds"`
	WriteConcurrency int      `json:"write_concurrency" yaml:"write_concurrency"`

	StorageType StorageKind `json:"storage_type" yaml:"storage_type"`
	DatabaseDSN string      `json:"database_dsn" yaml:"database_dsn"`
	BadgerDir   string      `json:"badger_dir" yaml:"badger_dir"`

	HttpAddress string `json:"http_address" yaml:"http_address"`
	TvlApiUrl   string `json:"tvl_api_url" yaml:"tvl_api_url"`
}

// Validate reports every invalid field at once.
func (c *IndexerConfig) Validate() error {
	var errs error

	if c.RpcUrl == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s is required (or set %s)", RpcUrl, LegacyRpcUrlEnv))
	} else if u, err := url.Parse(c.RpcUrl); err != nil || u.Host == "" || !slices.Contains([]string{"http", "https", "ws", "wss"}, u.Scheme) {
		errs = multierr.Append(errs, fmt.Errorf("%s %q is not a valid http(s) or ws(s) url", RpcUrl, c.RpcUrl))
	}

	if !slices.Contains(ethereum.SupportedBlockTypes, c.BlockType) {
		errs = multierr.Append(errs, fmt.Errorf("unsupported %s %q, expected one of %v", BlockType, c.BlockType, ethereum.SupportedBlockTypes))
	}
	if !slices.Contains(config.SupportedChainIds, c.ChainId) {
		errs = multierr.Append(errs, fmt.Errorf("unsupported %s %d", ChainId, c.ChainId))
	}
	if c.PoolAddress != "" && !common.IsHexAddress(c.PoolAddress) {
		errs = multierr.Append(errs, fmt.Errorf("%s %q is not a hex address", PoolAddress, c.PoolAddress))
	}
	if c.DataProviderAddress != "" && !common.IsHexAddress(c.DataProviderAddress) {
		errs = multierr.Append(errs, fmt.Errorf("%s %q is not a hex address", DataProviderAddress, c.DataProviderAddress))
	}

	if c.PollingInterval < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be negative", PollingInterval))
	}
	if c.WriteConcurrency < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be negative", WriteConcurrency))
	}
	if _, err := c.ParsedEventKinds(); err != nil {
		errs = multierr.Append(errs, err)
	}

	switch c.StorageType {
	case StorageKind_Memory:
	case StorageKind_Sqlite, StorageKind_Postgres:
		if c.DatabaseDSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required for %s storage", DatabaseDSN, c.StorageType))
		}
	case StorageKind_Badger:
		if c.BadgerDir == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required for badger storage", BadgerDir))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported %s %q", StorageType, c.StorageType))
	}

	if c.TvlApiUrl != "" {
		if u, err := url.Parse(c.TvlApiUrl); err != nil || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s %q is not a valid url", TvlApiUrl, c.TvlApiUrl))
		}
	}
	return errs
}

// ParsedEventKinds returns the configured kinds, or the default set when none are configured.
func (c *IndexerConfig) ParsedEventKinds() ([]chainPoller.EventKind, error) {
	if len(c.EventKinds) == 0 {
		return chainPoller.DefaultEventKinds, nil
	}
	kinds := make([]chainPoller.EventKind, 0, len(c.EventKinds))
	for _, raw := range c.EventKinds {
		kind, err := chainPoller.ParseEventKind(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EventKinds, err)
		}
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

func (c *IndexerConfig) PollingIntervalDuration() time.Duration {
	return time.Duration(c.PollingInterval) * time.Second
}

func NewIndexerConfigFromYamlBytes(data []byte) (*IndexerConfig, error) {
	c := NewDefaultIndexerConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal IndexerConfig from YAML")
	}
	return c, nil
}

func NewDefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		ChainId:         config.ChainId_EthereumMainnet,
		BlockType:       ethereum.BlockType_Latest,
		PollingInterval: 60,
		LookbackBlocks:  100,
		StorageType:     StorageKind_Memory,
		HttpAddress:     ":8080",
	}
}

// NewIndexerConfig reads every key from the global viper instance.
func NewIndexerConfig() *IndexerConfig {
	return NewIndexerConfigFromViper(viper.GetViper())
}

func NewIndexerConfigFromViper(v *viper.Viper) *IndexerConfig {
	c := NewDefaultIndexerConfig()
	key := config.NormalizeFlagName

	c.Debug = v.GetBool(key(Debug))
	if v.IsSet(key(ChainId)) {
		c.ChainId = config.ChainId(v.GetUint(key(ChainId)))
	}
	c.RpcUrl = v.GetString(key(RpcUrl))
	if v.IsSet(key(BlockType)) {
		c.BlockType = ethereum.BlockType(strings.ToLower(v.GetString(key(BlockType))))
	}
	c.PoolAddress = v.GetString(key(PoolAddress))
	c.DataProviderAddress = v.GetString(key(DataProviderAddress))
	if v.IsSet(key(PollingInterval)) {
		c.PollingInterval = v.GetInt(key(PollingInterval))
	}
	if v.IsSet(key(LookbackBlocks)) {
		c.LookbackBlocks = v.GetUint64(key(LookbackBlocks))
	}
	c.Confirmations = v.GetUint64(key(Confirmations))
	c.MaxBlockRange = v.GetUint64(key(MaxBlockRange))
	c.EventKinds = v.GetStringSlice(key(EventKinds))
	c.WriteConcurrency = v.GetInt(key(WriteConcurrency))
	if v.IsSet(key(StorageType)) {
		c.StorageType = StorageKind(strings.ToLower(v.GetString(key(StorageType))))
	}
	c.DatabaseDSN = v.GetString(key(DatabaseDSN))
	c.BadgerDir = v.GetString(key(BadgerDir))
	if v.IsSet(key(HttpAddress)) {
		c.HttpAddress = v.GetString(key(HttpAddress))
	}
	c.TvlApiUrl = v.GetString(key(TvlApiUrl))
	return c
}

// BindEnv registers INDEXER_* variables for every key and the legacy RPC url variable.
func BindEnv(v *viper.Viper) error {
	var errs error
	for _, name := range []string{
		Debug, ChainId, BlockType, PoolAddress, DataProviderAddress, PollingInterval, LookbackBlocks,
		Confirmations, MaxBlockRange, EventKinds, WriteConcurrency, StorageType, DatabaseDSN,
		BadgerDir, HttpAddress, TvlApiUrl,
	} {
		k := config.NormalizeFlagName(name)
		errs = multierr.Append(errs, v.BindEnv(k, EnvPrefix+strings.ToUpper(k)))
	}
	k := config.NormalizeFlagName(RpcUrl)
	errs = multierr.Append(errs, v.BindEnv(k, EnvPrefix+strings.ToUpper(k), LegacyRpcUrlEnv))
	return errs
}
