// Package defillama fetches protocol TVL from the DefiLlama public API.
package defillama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultBaseUrl = "https://api.llama.fi"

	defaultCacheTTL       = 60 * time.Second
	defaultCacheSize      = 128
	defaultRequestTimeout = 10 * time.Second
)

var ErrNoTVLData = errors.New("protocol has no tvl data")

type ProtocolTVL struct {
	Slug     string          `json:"slug"`
	Protocol string          `json:"protocol"`
	TVL      decimal.Decimal `json:"tvl"`
	// Date is the unix time of the newest data point
	Date int64 `json:"date"`
}

type ClientConfig struct {
	BaseUrl        string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
}

type Client struct {
	httpClient *http.Client
	config     *ClientConfig
	cache      *expirable.LRU[string, *ProtocolTVL]
	logger     *zap.Logger
}

type protocolResponse struct {
	Name string `json:"name"`
	TVL  []struct {
		Date              int64           `json:"date"`
		TotalLiquidityUSD decimal.Decimal `json:"totalLiquidityUSD"`
	} `json:"tvl"`
}

func NewClient(cfg *ClientConfig, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = DefaultBaseUrl
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		config:     cfg,
		cache:      expirable.NewLRU[string, *ProtocolTVL](defaultCacheSize, nil, cfg.CacheTTL),
		logger:     logger,
	}
}

// GetProtocolTVL returns the latest TVL point for slug. Successful lookups are served from cache
// until they expire; failures are never cached.
func (c *Client) GetProtocolTVL(ctx context.Context, slug string) (*ProtocolTVL, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, fmt.Errorf("protocol slug is required")
	}
	if cached, ok := c.cache.Get(slug); ok {
		return cached, nil
	}

	endpoint := strings.TrimRight(c.config.BaseUrl, "/") + "/protocol/" + url.PathEscape(slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch protocol %s: %w", slug, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("protocol %s: unexpected status %d: %s", slug, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded protocolResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode protocol %s: %w", slug, err)
	}
	if len(decoded.TVL) == 0 {
		return nil, fmt.Errorf("protocol %s: %w", slug, ErrNoTVLData)
	}

	last := decoded.TVL[len(decoded.TVL)-1]
	name := decoded.Name
	if name == "" {
		name = slug
	}
	tvl := &ProtocolTVL{
		Slug:     slug,
		Protocol: name,
		TVL:      last.TotalLiquidityUSD,
		Date:     last.Date,
	}
	c.cache.Add(slug, tvl)

	c.logger.Sugar().Debugw("Fetched protocol tvl",
		zap.String("slug", slug),
		zap.String("tvl", tvl.TVL.String()),
	)
	return tvl, nil
}
