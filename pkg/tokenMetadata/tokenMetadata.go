package tokenMetadata

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Layr-Labs/lending-indexer/pkg/amount"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const UnknownSymbol = "UNKNOWN"

const defaultFetchConcurrency = 8

type TokenMetadata struct {
	Address  string
	Symbol   string
	Decimals uint8
}

// ReserveToken mirrors the data provider's TokenData tuple.
type ReserveToken struct {
	Symbol       string
	TokenAddress common.Address
}

// Cache is an immutable snapshot of reserve metadata keyed by checksum address.
type Cache struct {
	tokens map[string]TokenMetadata
}

func NewCache(entries ...TokenMetadata) *Cache {
	c := &Cache{tokens: make(map[string]TokenMetadata, len(entries))}
	for _, e := range entries {
		key := checksum(e.Address)
		e.Address = key
		c.tokens[key] = e
	}
	return c
}

func checksum(address string) string {
	return common.HexToAddress(address).Hex()
}

// Lookup returns the metadata for address, case-insensitively.
func (c *Cache) Lookup(address string) (TokenMetadata, bool) {
	if c == nil {
		return TokenMetadata{}, false
	}
	md, ok := c.tokens[checksum(address)]
	return md, ok
}

// Get returns the metadata for address, or UNKNOWN with the default precision on a miss.
func (c *Cache) Get(address string) TokenMetadata {
	if md, ok := c.Lookup(address); ok {
		return md
	}
	return TokenMetadata{Address: checksum(address), Symbol: UnknownSymbol, Decimals: amount.DefaultDecimals}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tokens)
}

type ResolverConfig struct {
	DataProviderAddress string
	FetchConcurrency    int
}

// Resolver reads reserve metadata from the pool data provider.
type Resolver struct {
	client ethereum.Client
	config *ResolverConfig
	abi    *abi.ABI
	logger *zap.Logger
}

func NewResolver(client ethereum.Client, cfg *ResolverConfig, logger *zap.Logger) *Resolver {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultFetchConcurrency
	}
	return &Resolver{
		client: client,
		config: cfg,
		abi:    contracts.MustPoolDataProviderAbi(),
		logger: logger,
	}
}

// Resolve builds a fresh cache. Reserves whose configuration cannot be read are left out and
// fall back to UNKNOWN at lookup. When the reserve list itself is unavailable an empty cache is
// returned alongside the error so callers can keep going in a degraded mode.
func (r *Resolver) Resolve(ctx context.Context) (*Cache, error) {
	reserves, err := r.getAllReservesTokens(ctx)
	if err != nil {
		return NewCache(), fmt.Errorf("failed to list reserves: %w", err)
	}

	var mu sync.Mutex
	entries := make([]TokenMetadata, 0, len(reserves))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.FetchConcurrency)
	for _, reserve := range reserves {
		g.Go(func() error {
			decimals, err := r.getReserveDecimals(gCtx, reserve.TokenAddress)
			if err != nil {
				r.logger.Sugar().Warnw("Failed to fetch reserve configuration",
					zap.String("reserve", reserve.TokenAddress.Hex()),
					zap.String("symbol", reserve.Symbol),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			entries = append(entries, TokenMetadata{
				Address:  reserve.TokenAddress.Hex(),
				Symbol:   reserve.Symbol,
				Decimals: decimals,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Sugar().Debugw("Resolved reserve metadata",
		zap.Int("reserveCount", len(reserves)),
		zap.Int("resolvedCount", len(entries)),
	)
	return NewCache(entries...), nil
}

func (r *Resolver) getAllReservesTokens(ctx context.Context) ([]ReserveToken, error) {
	out, err := r.call(ctx, "getAllReservesTokens")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllReservesTokens returned %d values", len(out))
	}
	tokens := *abi.ConvertType(out[0], new([]ReserveToken)).(*[]ReserveToken)
	return tokens, nil
}

func (r *Resolver) getReserveDecimals(ctx context.Context, asset common.Address) (uint8, error) {
	out, err := r.call(ctx, "getReserveConfigurationData", asset)
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	if !decimals.IsUint64() || decimals.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", decimals)
	}
	return uint8(decimals.Uint64()), nil
}

func (r *Resolver) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	output, err := r.client.CallContract(ctx, r.config.DataProviderAddress, input)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := r.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}
