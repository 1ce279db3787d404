package chainPoller

import (
	"context"
	"fmt"
	"strings"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
)

type IChainPoller interface {
	Start(ctx context.Context) error
	RunOnce(ctx context.Context) (*TickResult, error)
}

type EventKind string

const (
	EventKind_Supply          EventKind = contracts.EventName_Supply
	EventKind_Borrow          EventKind = contracts.EventName_Borrow
	EventKind_Repay           EventKind = contracts.EventName_Repay
	EventKind_Withdraw        EventKind = contracts.EventName_Withdraw
	EventKind_LiquidationCall EventKind = contracts.EventName_LiquidationCall
)

var AllEventKinds = []EventKind{
	EventKind_Supply,
	EventKind_Borrow,
	EventKind_Repay,
	EventKind_Withdraw,
	EventKind_LiquidationCall,
}

// DefaultEventKinds are the pool events tracked when none are configured.
var DefaultEventKinds = []EventKind{
	EventKind_Supply,
	EventKind_Borrow,
	EventKind_Repay,
	EventKind_Withdraw,
}

func ParseEventKind(s string) (EventKind, error) {
	for _, k := range AllEventKinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind: %q", s)
}

// Event is a normalized lending pool event. (TransactionHash, LogIndex) identifies it.
type Event struct {
	Type            EventKind `json:"type"`
	User            string    `json:"user"`
	OnBehalfOf      string    `json:"onBehalfOf,omitempty"`
	Reserve         string    `json:"reserve"`
	Symbol          string    `json:"symbol,omitempty"`
	Amount          string    `json:"amount"`
	BlockNumber     uint64    `json:"blockNumber"`
	Timestamp       uint64    `json:"timestamp,omitempty"`
	TransactionHash string    `json:"transactionHash"`
	LogIndex        uint64    `json:"logIndex"`
}

// EventKey is the dedup key for an event.
func (e *Event) EventKey() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(e.TransactionHash), e.LogIndex)
}

// TickResult summarizes one poll of the chain.
type TickResult struct {
	FromBlock  uint64
	ToBlock    uint64
	Skipped    bool
	LogCount   int
	EventCount int
	Inserted   int
	Duplicates int
	Degraded   int
}

// IEventStore persists events and the per-chain ingestion watermark.
type IEventStore interface {
	// GetLastProcessedBlock returns persistence.ErrNotFound when the chain has never been processed.
	GetLastProcessedBlock(ctx context.Context, chainId config.ChainId) (uint64, error)
	// SaveLastProcessedBlock never moves the watermark backwards.
	SaveLastProcessedBlock(ctx context.Context, chainId config.ChainId, blockNumber uint64) error

	// InsertEvent reports false without error when an event with the same key already exists.
	InsertEvent(ctx context.Context, event *Event) (bool, error)
	// ListRecentEvents returns up to limit events ordered by block number, then log index, descending.
	ListRecentEvents(ctx context.Context, limit int) ([]*Event, error)
	CountEvents(ctx context.Context) (uint64, error)

	Close() error
}
