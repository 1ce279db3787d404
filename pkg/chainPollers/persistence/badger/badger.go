package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	badgerv3 "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key layout
const (
	prefixEvent        = "event:"
	keyEvent           = "event:%s:%d" // txHash:logIndex
	prefixEventByBlock = "eventblock:"
	keyEventByBlock    = "eventblock:%020d:%020d:%s" // blockNumber:logIndex:txHash
	keyWatermark       = "watermark:%d"              // chainId
)

const maxConflictRetries = 10

type BadgerEventStoreConfig struct {
	Dir      string
	InMemory bool
	// GCInterval is how often value log garbage collection runs; zero uses five minutes
	GCInterval time.Duration
}

// BadgerEventStore implements IEventStore on an embedded BadgerDB
type BadgerEventStore struct {
	db       *badgerv3.DB
	mu       sync.RWMutex
	closed   bool
	closeCh  chan struct{}
	gcTicker *time.Ticker
	logger   *zap.Logger
}

func NewBadgerEventStore(cfg *BadgerEventStoreConfig, logger *zap.Logger) (*BadgerEventStore, error) {
	if cfg == nil {
		return nil, errors.New("badger config is nil")
	}

	opts := badgerv3.DefaultOptions(cfg.Dir)
	opts.Logger = nil
	if cfg.InMemory {
		opts = badgerv3.DefaultOptions("").WithInMemory(true)
		opts.Logger = nil
	} else if cfg.Dir == "" {
		return nil, errors.New("badger dir is required unless running in memory")
	}

	db, err := badgerv3.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	gcInterval := cfg.GCInterval
	if gcInterval <= 0 {
		gcInterval = 5 * time.Minute
	}
	s := &BadgerEventStore{
		db:       db,
		closeCh:  make(chan struct{}),
		gcTicker: time.NewTicker(gcInterval),
		logger:   logger,
	}
	go s.runGC()

	return s, nil
}

func (s *BadgerEventStore) runGC() {
	for {
		select {
		case <-s.gcTicker.C:
			s.mu.RLock()
			if s.closed {
				s.mu.RUnlock()
				return
			}
			_ = s.db.RunValueLogGC(0.5)
			s.mu.RUnlock()
		case <-s.closeCh:
			return
		}
	}
}

// update retries fn when a concurrent transaction touched the same keys.
func (s *BadgerEventStore) update(fn func(txn *badgerv3.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badgerv3.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerEventStore) GetLastProcessedBlock(ctx context.Context, chainId config.ChainId) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}

	var blockNumber uint64
	err := s.db.View(func(txn *badgerv3.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf(keyWatermark, chainId)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt watermark value of %d bytes", len(val))
			}
			blockNumber = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badgerv3.ErrKeyNotFound) {
		return 0, persistence.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last processed block: %w", err)
	}
	return blockNumber, nil
}

func (s *BadgerEventStore) SaveLastProcessedBlock(ctx context.Context, chainId config.ChainId, blockNumber uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	key := []byte(fmt.Sprintf(keyWatermark, chainId))
	err := s.update(func(txn *badgerv3.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			var current uint64
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt watermark value of %d bytes", len(val))
				}
				current = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
			if current >= blockNumber {
				return nil
			}
		case !errors.Is(err, badgerv3.ErrKeyNotFound):
			return err
		}

		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, blockNumber)
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("failed to save last processed block: %w", err)
	}
	return nil
}

func (s *BadgerEventStore) InsertEvent(ctx context.Context, event *chainPoller.Event) (bool, error) {
	if event == nil {
		return false, errors.New("event cannot be nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, persistence.ErrStoreClosed
	}

	stored := *event
	stored.TransactionHash = strings.ToLower(stored.TransactionHash)
	value, err := json.Marshal(&stored)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event: %w", err)
	}

	eventKey := []byte(fmt.Sprintf(keyEvent, stored.TransactionHash, stored.LogIndex))
	indexKey := []byte(fmt.Sprintf(keyEventByBlock, stored.BlockNumber, stored.LogIndex, stored.TransactionHash))

	inserted := false
	err = s.update(func(txn *badgerv3.Txn) error {
		inserted = false
		_, err := txn.Get(eventKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerv3.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(eventKey, value); err != nil {
			return err
		}
		if err := txn.Set(indexKey, eventKey); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.EventKey(), err)
	}
	return inserted, nil
}

func (s *BadgerEventStore) ListRecentEvents(ctx context.Context, limit int) ([]*chainPoller.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, persistence.ErrStoreClosed
	}
	if limit <= 0 {
		return []*chainPoller.Event{}, nil
	}

	events := make([]*chainPoller.Event, 0, limit)
	err := s.db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEventByBlock)
		opts.Reverse = true
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration must start past the last key carrying the prefix
		for it.Seek(append([]byte(prefixEventByBlock), 0xFF)); it.Valid() && len(events) < limit; it.Next() {
			eventKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(eventKey)
			if err != nil {
				return fmt.Errorf("index points at missing event %s: %w", eventKey, err)
			}
			var e chainPoller.Event
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			events = append(events, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}

func (s *BadgerEventStore) CountEvents(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}

	var count uint64
	err := s.db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (s *BadgerEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	s.closed = true
	s.gcTicker.Stop()
	close(s.closeCh)

	return s.db.Close()
}
