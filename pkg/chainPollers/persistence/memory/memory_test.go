package memory_test

import (
	"context"
	"testing"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_InMemoryEventStore runs the standard storage test suite
func Test_InMemoryEventStore(t *testing.T) {
	suite := &persistence.TestSuite{
		NewStore: func() (chainPoller.IEventStore, error) {
			return memory.NewInMemoryEventStore(), nil
		},
	}
	suite.Run(t)
}

// TestInMemorySpecific tests in-memory specific behavior
func TestInMemorySpecific(t *testing.T) {
	t.Run("MultipleInstances", func(t *testing.T) {
		ctx := context.Background()
		store1 := memory.NewInMemoryEventStore()
		store2 := memory.NewInMemoryEventStore()

		_, err := store1.InsertEvent(ctx, &chainPoller.Event{TransactionHash: "0x1", LogIndex: 0})
		require.NoError(t, err)

		count, err := store2.CountEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), count)
	})

	t.Run("StoredEventsAreCopies", func(t *testing.T) {
		ctx := context.Background()
		store := memory.NewInMemoryEventStore()

		e := &chainPoller.Event{TransactionHash: "0x1", Amount: "1.0"}
		_, err := store.InsertEvent(ctx, e)
		require.NoError(t, err)
		e.Amount = "2.0"

		events, err := store.ListRecentEvents(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "1.0", events[0].Amount)
	})
}
