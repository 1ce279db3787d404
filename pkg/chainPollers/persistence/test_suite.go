package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite defines a test suite that all event store implementations must pass
type TestSuite struct {
	NewStore func() (chainPoller.IEventStore, error)
}

// Run executes all store interface compliance tests
func (s *TestSuite) Run(t *testing.T) {
	t.Run("Watermark", s.testWatermark)
	t.Run("WatermarkMonotonic", s.testWatermarkMonotonic)
	t.Run("InsertIdempotent", s.testInsertIdempotent)
	t.Run("RecentOrdering", s.testRecentOrdering)
	t.Run("Lifecycle", s.testLifecycle)
	t.Run("ConcurrentAccess", s.testConcurrentAccess)
}

func newEvent(txHash string, logIndex uint64, blockNumber uint64) *chainPoller.Event {
	return &chainPoller.Event{
		Type:            chainPoller.EventKind_Supply,
		User:            "0x00000000000000000000000000000000000A11cE",
		OnBehalfOf:      "0x0000000000000000000000000000000000000B0b",
		Reserve:         "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Symbol:          "USDC",
		Amount:          "1.5",
		BlockNumber:     blockNumber,
		Timestamp:       1_700_000_000 + blockNumber,
		TransactionHash: txHash,
		LogIndex:        logIndex,
	}
}

func (s *TestSuite) testWatermark(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	// nolint:errcheck
	defer store.Close()

	ctx := context.Background()
	chainId := config.ChainId(1)

	_, err = store.GetLastProcessedBlock(ctx, chainId)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId, 12345))
	got, err := store.GetLastProcessedBlock(ctx, chainId)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), got)

	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId, 12346))
	got, err = store.GetLastProcessedBlock(ctx, chainId)
	require.NoError(t, err)
	assert.Equal(t, uint64(12346), got)

	// Chains are tracked independently
	chainId2 := config.ChainId(8453)
	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId2, 54321))
	got, err = store.GetLastProcessedBlock(ctx, chainId2)
	require.NoError(t, err)
	assert.Equal(t, uint64(54321), got)

	got, err = store.GetLastProcessedBlock(ctx, chainId)
	require.NoError(t, err)
	assert.Equal(t, uint64(12346), got)

	// Zero is a valid watermark
	chainId3 := config.ChainId(31337)
	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId3, 0))
	got, err = store.GetLastProcessedBlock(ctx, chainId3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func (s *TestSuite) testWatermarkMonotonic(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	// nolint:errcheck
	defer store.Close()

	ctx := context.Background()
	chainId := config.ChainId(1)

	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId, 1010))
	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId, 1005))

	got, err := store.GetLastProcessedBlock(ctx, chainId)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), got, "a lower watermark must not overwrite a higher one")

	require.NoError(t, store.SaveLastProcessedBlock(ctx, chainId, 1010))
	got, err = store.GetLastProcessedBlock(ctx, chainId)
	require.NoError(t, err)
	assert.Equal(t, uint64(1010), got)
}

func (s *TestSuite) testInsertIdempotent(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	// nolint:errcheck
	defer store.Close()

	ctx := context.Background()

	first := newEvent("0xaaa", 1, 1003)
	inserted, err := store.InsertEvent(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same key with different content: first write wins
	dup := newEvent("0xaaa", 1, 1003)
	dup.Amount = "999.0"
	inserted, err = store.InsertEvent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same transaction, different log index is a distinct event
	inserted, err = store.InsertEvent(ctx, newEvent("0xaaa", 2, 1003))
	require.NoError(t, err)
	assert.True(t, inserted)

	count, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	events, err := store.ListRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		if e.LogIndex == 1 {
			assert.Equal(t, "1.5", e.Amount)
			assert.Equal(t, first.User, e.User)
			assert.Equal(t, first.OnBehalfOf, e.OnBehalfOf)
			assert.Equal(t, first.Timestamp, e.Timestamp)
		}
	}

	_, err = store.InsertEvent(ctx, nil)
	assert.Error(t, err)
}

func (s *TestSuite) testRecentOrdering(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	// nolint:errcheck
	defer store.Close()

	ctx := context.Background()

	events, err := store.ListRecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	for _, e := range []*chainPoller.Event{
		newEvent("0x01", 0, 1003),
		newEvent("0x02", 5, 1009),
		newEvent("0x03", 1, 1007),
		newEvent("0x04", 4, 1007),
		newEvent("0x05", 0, 998),
	} {
		_, err := store.InsertEvent(ctx, e)
		require.NoError(t, err)
	}

	events, err = store.ListRecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(1009), events[0].BlockNumber)
	assert.Equal(t, uint64(1007), events[1].BlockNumber)
	assert.Equal(t, uint64(4), events[1].LogIndex)
	assert.Equal(t, uint64(1007), events[2].BlockNumber)
	assert.Equal(t, uint64(1), events[2].LogIndex)

	events, err = store.ListRecentEvents(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, uint64(998), events[4].BlockNumber)

	events, err = store.ListRecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func (s *TestSuite) testLifecycle(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, store.SaveLastProcessedBlock(ctx, config.ChainId(1), 12345))
	_, err = store.InsertEvent(ctx, newEvent("0xaaa", 0, 12345))
	require.NoError(t, err)

	err = store.Close()
	require.NoError(t, err)

	// Operations after close should fail
	err = store.SaveLastProcessedBlock(ctx, config.ChainId(1), 12346)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.GetLastProcessedBlock(ctx, config.ChainId(1))
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.InsertEvent(ctx, newEvent("0xbbb", 0, 12346))
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.ListRecentEvents(ctx, 10)
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.CountEvents(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)

	assert.ErrorIs(t, store.Close(), ErrStoreClosed)
}

func (s *TestSuite) testConcurrentAccess(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)

	// nolint:errcheck
	defer store.Close()

	ctx := context.Background()
	done := make(chan bool)
	errors := make(chan error, 20)

	// Concurrent writers racing on the same event keys
	for i := 0; i < 5; i++ {
		go func(worker int) {
			for j := 0; j < 10; j++ {
				if _, err := store.InsertEvent(ctx, newEvent(fmt.Sprintf("0x%04x", j), uint64(j%3), uint64(1000+j))); err != nil {
					errors <- err
					return
				}
				if err := store.SaveLastProcessedBlock(ctx, config.ChainId(1), uint64(1000+worker*10+j)); err != nil {
					errors <- err
					return
				}
			}
			done <- true
		}(i)
	}

	// Concurrent readers
	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				if _, err := store.GetLastProcessedBlock(ctx, config.ChainId(1)); err != nil && err != ErrNotFound {
					errors <- err
					return
				}
				if _, err := store.ListRecentEvents(ctx, 5); err != nil {
					errors <- err
					return
				}
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case err := <-errors:
			t.Fatalf("Concurrent access error: %v", err)
		case <-time.After(10 * time.Second):
			t.Fatal("Timeout waiting for concurrent operations")
		}
	}

	count, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), count, "racing inserts of the same keys must store each event once")

	got, err := store.GetLastProcessedBlock(ctx, config.ChainId(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1049), got, "the highest watermark wins regardless of write order")
}
