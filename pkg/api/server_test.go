package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/memory"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/defillama"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTVL struct {
	tvl *defillama.ProtocolTVL
	err error
}

func (f *fakeTVL) GetProtocolTVL(_ context.Context, slug string) (*defillama.ProtocolTVL, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tvl, nil
}

func newTestServer(t *testing.T, tvl ITVLProvider) (*httptest.Server, *memory.InMemoryEventStore, *metrics.IndexerMetrics) {
	t.Helper()
	store := memory.NewInMemoryEventStore()
	m := metrics.NewIndexerMetrics()
	s := NewServer(&ServerConfig{ChainId: config.ChainId_EthereumMainnet}, store, tvl, m, zap.NewNop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, store, m
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, body
}

func seedEvents(t *testing.T, store chainPoller.IEventStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.InsertEvent(context.Background(), &chainPoller.Event{
			Type:            chainPoller.EventKind_Supply,
			User:            "0x00000000000000000000000000000000000a11ce",
			Reserve:         "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Symbol:          "USDC",
			Amount:          "1.5",
			BlockNumber:     uint64(1000 + i),
			TransactionHash: fmt.Sprintf("0x%064x", i),
			LogIndex:        0,
		})
		require.NoError(t, err)
	}
}

func TestRecentEvents(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)
	seedEvents(t, store, 60)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{name: "default limit", query: "", wantStatus: http.StatusOK, wantLen: 50},
		{name: "explicit limit", query: "?limit=5", wantStatus: http.StatusOK, wantLen: 5},
		{name: "capped at max", query: "?limit=500", wantStatus: http.StatusOK, wantLen: 50},
		{name: "zero rejected", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "garbage rejected", query: "?limit=abc", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+"/api/v1/events/recent"+tt.query)
			require.Equal(t, tt.wantStatus, status)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var events []*chainPoller.Event
			require.NoError(t, json.Unmarshal(body, &events))
			require.Len(t, events, tt.wantLen)
			assert.Equal(t, uint64(1059), events[0].BlockNumber)
			for i := 1; i < len(events); i++ {
				assert.Greater(t, events[i-1].BlockNumber, events[i].BlockNumber)
			}
		})
	}
}

func TestRecentEvents_EmptyStoreReturnsArray(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	status, body := get(t, srv.URL+"/api/v1/events/recent")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestStatus(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)

	status, body := get(t, srv.URL+"/api/v1/status")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"chainId":1,"lastProcessedBlock":null,"eventCount":0}`, string(body))

	seedEvents(t, store, 3)
	require.NoError(t, store.SaveLastProcessedBlock(context.Background(), config.ChainId_EthereumMainnet, 1010))

	status, body = get(t, srv.URL+"/api/v1/status")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"chainId":1,"lastProcessedBlock":1010,"eventCount":3}`, string(body))
}

func TestStatus_StoreClosed(t *testing.T) {
	srv, store, _ := newTestServer(t, nil)
	require.NoError(t, store.Close())

	status, _ := get(t, srv.URL+"/api/v1/status")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestProtocolTVL(t *testing.T) {
	tests := []struct {
		name string
		tvl  ITVLProvider
		want string
	}{
		{
			name: "aggregator available",
			tvl: &fakeTVL{tvl: &defillama.ProtocolTVL{
				Slug: "aave-v3", Protocol: "Aave V3", TVL: decimal.RequireFromString("21456789012.37"), Date: 1700086400,
			}},
			want: `{"protocol":"Aave V3","tvl":"21456789012.37","date":1700086400,"source":"defillama"}`,
		},
		{
			name: "aggregator failing",
			tvl:  &fakeTVL{err: errors.New("503")},
			want: `{"protocol":"aave-v3","tvl":null,"source":"unavailable"}`,
		},
		{
			name: "no aggregator configured",
			want: `{"protocol":"aave-v3","tvl":null,"source":"unavailable"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, tt.tvl)
			status, body := get(t, srv.URL+"/api/v1/protocols/aave-v3/tvl")
			assert.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _, m := newTestServer(t, nil)
	m.SetWatermark(1, 1010)

	status, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))

	status, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "last_processed_block")
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := NewServer(&ServerConfig{Address: "127.0.0.1:0"}, memory.NewInMemoryEventStore(), nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
