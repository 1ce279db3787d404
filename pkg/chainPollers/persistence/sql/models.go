package sql

import (
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
)

type eventRow struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	Type            string `gorm:"size:32;not null"`
	User            string `gorm:"size:42;not null"`
	OnBehalfOf      string `gorm:"size:42"`
	Reserve         string `gorm:"size:42;not null;index"`
	Symbol          string `gorm:"size:32"`
	Amount          string `gorm:"size:96;not null"`
	BlockNumber     uint64 `gorm:"not null;index"`
	Timestamp       uint64
	TransactionHash string `gorm:"size:66;not null;uniqueIndex:idx_lending_events_tx_log"`
	LogIndex        uint64 `gorm:"not null;uniqueIndex:idx_lending_events_tx_log"`
	CreatedAt       time.Time
}

func (eventRow) TableName() string {
	return "lending_events"
}

type watermarkRow struct {
	ChainId            uint   `gorm:"primaryKey;autoIncrement:false"`
	LastProcessedBlock uint64 `gorm:"not null"`
	UpdatedAt          time.Time
}

func (watermarkRow) TableName() string {
	return "ingestion_watermarks"
}

func rowFromEvent(e *chainPoller.Event) *eventRow {
	return &eventRow{
		Type:            string(e.Type),
		User:            e.User,
		OnBehalfOf:      e.OnBehalfOf,
		Reserve:         e.Reserve,
		Symbol:          e.Symbol,
		Amount:          e.Amount,
		BlockNumber:     e.BlockNumber,
		Timestamp:       e.Timestamp,
		TransactionHash: e.TransactionHash,
		LogIndex:        e.LogIndex,
	}
}

func (r *eventRow) toEvent() *chainPoller.Event {
	return &chainPoller.Event{
		Type:            chainPoller.EventKind(r.Type),
		User:            r.User,
		OnBehalfOf:      r.OnBehalfOf,
		Reserve:         r.Reserve,
		Symbol:          r.Symbol,
		Amount:          r.Amount,
		BlockNumber:     r.BlockNumber,
		Timestamp:       r.Timestamp,
		TransactionHash: r.TransactionHash,
		LogIndex:        r.LogIndex,
	}
}
