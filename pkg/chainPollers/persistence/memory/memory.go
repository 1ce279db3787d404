package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
)

// InMemoryEventStore implements IEventStore with in-memory storage
type InMemoryEventStore struct {
	mu                  sync.RWMutex
	closed              bool
	lastProcessedBlocks map[config.ChainId]uint64
	events              map[string]*chainPoller.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		lastProcessedBlocks: make(map[config.ChainId]uint64),
		events:              make(map[string]*chainPoller.Event),
	}
}

func (s *InMemoryEventStore) GetLastProcessedBlock(ctx context.Context, chainId config.ChainId) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}

	blockNum, exists := s.lastProcessedBlocks[chainId]
	if !exists {
		return 0, persistence.ErrNotFound
	}
	return blockNum, nil
}

func (s *InMemoryEventStore) SaveLastProcessedBlock(ctx context.Context, chainId config.ChainId, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	if current, exists := s.lastProcessedBlocks[chainId]; exists && current >= blockNumber {
		return nil
	}
	s.lastProcessedBlocks[chainId] = blockNumber
	return nil
}

func (s *InMemoryEventStore) InsertEvent(ctx context.Context, event *chainPoller.Event) (bool, error) {
	if event == nil {
		return false, fmt.Errorf("event cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, persistence.ErrStoreClosed
	}

	key := event.EventKey()
	if _, exists := s.events[key]; exists {
		return false, nil
	}
	stored := *event
	stored.TransactionHash = strings.ToLower(stored.TransactionHash)
	s.events[key] = &stored
	return true, nil
}

func (s *InMemoryEventStore) ListRecentEvents(ctx context.Context, limit int) ([]*chainPoller.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, persistence.ErrStoreClosed
	}
	if limit <= 0 {
		return []*chainPoller.Event{}, nil
	}

	all := make([]*chainPoller.Event, 0, len(s.events))
	for _, e := range s.events {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].BlockNumber != all[j].BlockNumber {
			return all[i].BlockNumber > all[j].BlockNumber
		}
		return all[i].LogIndex > all[j].LogIndex
	})
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]*chainPoller.Event, len(all))
	for i, e := range all {
		c := *e
		out[i] = &c
	}
	return out, nil
}

func (s *InMemoryEventStore) CountEvents(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}
	return uint64(len(s.events)), nil
}

func (s *InMemoryEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	s.closed = true
	s.lastProcessedBlocks = nil
	s.events = nil

	return nil
}
