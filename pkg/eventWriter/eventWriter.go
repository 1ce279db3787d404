package eventWriter

import (
	"context"
	"fmt"
	"sync"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWriteConcurrency = 16

type WriteResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}

type EventWriterConfig struct {
	WriteConcurrency int
}

// EventWriter persists a batch of events and advances the watermark once the whole batch is durable.
type EventWriter struct {
	store   chainPoller.IEventStore
	config  *EventWriterConfig
	metrics *metrics.IndexerMetrics
	logger  *zap.Logger
}

func NewEventWriter(store chainPoller.IEventStore, cfg *EventWriterConfig, m *metrics.IndexerMetrics, logger *zap.Logger) *EventWriter {
	if cfg == nil {
		cfg = &EventWriterConfig{}
	}
	if cfg.WriteConcurrency <= 0 {
		cfg.WriteConcurrency = defaultWriteConcurrency
	}
	return &EventWriter{
		store:   store,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// WriteBatch attempts every insert even when some fail. The watermark moves to headBlock only
// when all of them succeeded; otherwise the aggregated error is returned and the watermark is
// left for the next tick to retry from.
func (w *EventWriter) WriteBatch(ctx context.Context, chainId config.ChainId, events []*chainPoller.Event, headBlock uint64) (*WriteResult, error) {
	result := &WriteResult{}

	var (
		mu      sync.Mutex
		errs    error
		g       errgroup.Group
		written = make(map[string]struct{}, len(events))
	)
	g.SetLimit(w.config.WriteConcurrency)

	for _, event := range events {
		// an identity seen twice in one batch is a duplicate without touching the store
		key := event.EventKey()
		if _, seen := written[key]; seen {
			result.Duplicates++
			w.metrics.ObserveWrite(string(event.Type), "duplicate")
			continue
		}
		written[key] = struct{}{}

		g.Go(func() error {
			inserted, err := w.store.InsertEvent(ctx, event)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				errs = multierr.Append(errs, fmt.Errorf("event %s: %w", key, err))
				w.metrics.ObserveWrite(string(event.Type), "failed")
			case inserted:
				result.Inserted++
				w.metrics.ObserveWrite(string(event.Type), "inserted")
			default:
				result.Duplicates++
				w.metrics.ObserveWrite(string(event.Type), "duplicate")
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		w.logger.Sugar().Errorw("Event batch partially failed, watermark unchanged",
			zap.Uint("chainId", uint(chainId)),
			zap.Int("inserted", result.Inserted),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("failed", result.Failed),
			zap.Error(errs),
		)
		return result, fmt.Errorf("%d of %d event writes failed: %w", result.Failed, len(events), errs)
	}

	if err := w.store.SaveLastProcessedBlock(ctx, chainId, headBlock); err != nil {
		return result, fmt.Errorf("failed to save watermark %d: %w", headBlock, err)
	}
	w.metrics.SetWatermark(uint(chainId), headBlock)

	w.logger.Sugar().Debugw("Event batch written",
		zap.Uint("chainId", uint(chainId)),
		zap.Uint64("watermark", headBlock),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}
