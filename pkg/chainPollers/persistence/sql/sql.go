package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	Driver_Sqlite   = "sqlite"
	Driver_Postgres = "postgres"
)

type SqlEventStoreConfig struct {
	Driver string
	DSN    string
}

// SqlEventStore keeps events and watermarks in a relational database. The unique index on
// (transaction_hash, log_index) is what makes inserts idempotent.
type SqlEventStore struct {
	mu     sync.RWMutex
	closed bool
	db     *gorm.DB
	logger *zap.Logger
}

func OpenDatabase(cfg *SqlEventStoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case Driver_Sqlite:
		dialector = sqlite.Open(cfg.DSN)
	case Driver_Postgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == Driver_Sqlite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func NewSqlEventStore(cfg *SqlEventStoreConfig, logger *zap.Logger) (*SqlEventStore, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return NewSqlEventStoreWithDB(db, logger)
}

func NewSqlEventStoreWithDB(db *gorm.DB, logger *zap.Logger) (*SqlEventStore, error) {
	if err := db.AutoMigrate(&eventRow{}, &watermarkRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event store: %w", err)
	}
	return &SqlEventStore{
		db:     db,
		logger: logger,
	}, nil
}

func (s *SqlEventStore) GetLastProcessedBlock(ctx context.Context, chainId config.ChainId) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}

	var row watermarkRow
	res := s.db.WithContext(ctx).Where("chain_id = ?", uint(chainId)).Limit(1).Find(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, persistence.ErrNotFound
	}
	return row.LastProcessedBlock, nil
}

func (s *SqlEventStore) SaveLastProcessedBlock(ctx context.Context, chainId config.ChainId, blockNumber uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&watermarkRow{
			ChainId:            uint(chainId),
			LastProcessedBlock: blockNumber,
		})
		if created.Error != nil {
			return fmt.Errorf("failed to create watermark: %w", created.Error)
		}
		if created.RowsAffected == 1 {
			return nil
		}

		var current watermarkRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("chain_id = ?", uint(chainId)).
			First(&current).Error; err != nil {
			return fmt.Errorf("failed to lock watermark: %w", err)
		}
		if current.LastProcessedBlock >= blockNumber {
			return nil
		}
		if err := tx.Model(&current).Update("last_processed_block", blockNumber).Error; err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
		return nil
	})
}

func (s *SqlEventStore) InsertEvent(ctx context.Context, event *chainPoller.Event) (bool, error) {
	if event == nil {
		return false, errors.New("event cannot be nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, persistence.ErrStoreClosed
	}

	row := rowFromEvent(event)
	row.TransactionHash = strings.ToLower(row.TransactionHash)

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.EventKey(), res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SqlEventStore) ListRecentEvents(ctx context.Context, limit int) ([]*chainPoller.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, persistence.ErrStoreClosed
	}
	if limit <= 0 {
		return []*chainPoller.Event{}, nil
	}

	var rows []*eventRow
	if err := s.db.WithContext(ctx).
		Order("block_number desc").
		Order("log_index desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*chainPoller.Event, len(rows))
	for i, r := range rows {
		events[i] = r.toEvent()
	}
	return events, nil
}

func (s *SqlEventStore) CountEvents(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, persistence.ErrStoreClosed
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&eventRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return uint64(count), nil
}

func (s *SqlEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrStoreClosed
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
