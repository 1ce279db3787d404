package EVMChainPoller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	chainPoller "github.com/Layr-Labs/lending-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/lending-indexer/pkg/chainPollers/persistence"
	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contractStore"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/eventWriter"
	"github.com/Layr-Labs/lending-indexer/pkg/metrics"
	"github.com/Layr-Labs/lending-indexer/pkg/tokenMetadata"
	"github.com/Layr-Labs/lending-indexer/pkg/transactionLogParser"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrTickInProgress = errors.New("a tick is already in progress")

const (
	defaultPollingInterval        = 60 * time.Second
	defaultHeaderFetchConcurrency = 10
	defaultLogsFetchTimeout       = 30 * time.Second
)

type EVMChainPollerConfig struct {
	ChainId         config.ChainId
	PollingInterval time.Duration
	PoolAddress     string
	EventKinds      []chainPoller.EventKind

	// Lookback is how far behind the confirmed head the first run starts; zero starts at the head
	Lookback uint64
	// Confirmations keeps the most recent blocks out of a tick until they are this deep
	Confirmations uint64
	// MaxBlockRange caps how many blocks one tick covers; zero means unbounded
	MaxBlockRange uint64

	HeaderFetchConcurrency int
	LogsFetchTimeout       time.Duration
}

type ITokenResolver interface {
	Resolve(ctx context.Context) (*tokenMetadata.Cache, error)
}

type IEventWriter interface {
	WriteBatch(ctx context.Context, chainId config.ChainId, events []*chainPoller.Event, headBlock uint64) (*eventWriter.WriteResult, error)
}

type EVMChainPoller struct {
	ethClient     ethereum.Client
	logParser     transactionLogParser.LogParser
	contractStore contractStore.IContractStore
	config        *EVMChainPollerConfig
	tokenResolver ITokenResolver
	store         chainPoller.IEventStore
	writer        IEventWriter
	metrics       *metrics.IndexerMetrics
	logger        *zap.Logger

	tickMu sync.Mutex
	now    func() time.Time
}

func NewEVMChainPoller(
	ethClient ethereum.Client,
	logParser transactionLogParser.LogParser,
	contractStore contractStore.IContractStore,
	config *EVMChainPollerConfig,
	tokenResolver ITokenResolver,
	store chainPoller.IEventStore,
	writer IEventWriter,
	m *metrics.IndexerMetrics,
	logger *zap.Logger,
) *EVMChainPoller {
	if contractStore == nil {
		panic("contract store is required")
	}
	if store == nil {
		panic("store is required")
	}
	if writer == nil {
		panic("writer is required")
	}

	if config.PollingInterval <= 0 {
		config.PollingInterval = defaultPollingInterval
	}
	if len(config.EventKinds) == 0 {
		config.EventKinds = chainPoller.DefaultEventKinds
	}
	if config.HeaderFetchConcurrency <= 0 {
		config.HeaderFetchConcurrency = defaultHeaderFetchConcurrency
	}
	if config.LogsFetchTimeout <= 0 {
		config.LogsFetchTimeout = defaultLogsFetchTimeout
	}

	pollerLogger := logger.With(
		zap.Uint("chainId", uint(config.ChainId)),
	)
	return &EVMChainPoller{
		ethClient:     ethClient,
		logParser:     logParser,
		contractStore: contractStore,
		config:        config,
		tokenResolver: tokenResolver,
		store:         store,
		writer:        writer,
		metrics:       m,
		logger:        pollerLogger,
		now:           time.Now,
	}
}

// Start runs one tick right away and then one per polling interval until ctx is cancelled.
func (ecp *EVMChainPoller) Start(ctx context.Context) error {
	ecp.logger.Sugar().Infow("Starting lending pool poller",
		zap.String("pool", ecp.config.PoolAddress),
		zap.Any("eventKinds", ecp.config.EventKinds),
		zap.Duration("pollingInterval", ecp.config.PollingInterval),
	)

	go ecp.pollForEvents(ctx)

	return nil
}

func (ecp *EVMChainPoller) pollForEvents(ctx context.Context) {
	ticker := time.NewTicker(ecp.config.PollingInterval)
	defer ticker.Stop()

	ecp.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			ecp.logger.Sugar().Infow("Polling loop context cancelled, stopping")
			return
		case <-ticker.C:
			ecp.tick(ctx)
		}
	}
}

func (ecp *EVMChainPoller) tick(ctx context.Context) {
	result, err := ecp.RunOnce(ctx)
	if errors.Is(err, ErrTickInProgress) {
		ecp.logger.Sugar().Debugw("Previous tick still running, skipping")
		return
	}
	if err != nil {
		ecp.logger.Sugar().Errorw("Tick failed, will retry on next interval", zap.Error(err))
		return
	}
	if result.Skipped {
		return
	}
	ecp.logger.Sugar().Infow("Tick complete",
		zap.Uint64("fromBlock", result.FromBlock),
		zap.Uint64("toBlock", result.ToBlock),
		zap.Int("logs", result.LogCount),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("degraded", result.Degraded),
	)
}

// RunOnce ingests every tracked event between the watermark and the confirmed head. A failure
// before or during the write phase leaves the watermark untouched; the next call covers the
// same range again and the store drops whatever was already written.
func (ecp *EVMChainPoller) RunOnce(ctx context.Context) (*chainPoller.TickResult, error) {
	if !ecp.tickMu.TryLock() {
		return nil, ErrTickInProgress
	}
	defer ecp.tickMu.Unlock()

	start := time.Now()
	logger := ecp.logger.With(zap.String("tickId", uuid.NewString()))

	result, err := ecp.runTick(ctx, logger)
	switch {
	case err != nil:
		ecp.metrics.ObserveTick(metrics.TickOutcome_Failure, time.Since(start))
	case result.Skipped:
		ecp.metrics.ObserveTick(metrics.TickOutcome_Skipped, time.Since(start))
	default:
		ecp.metrics.ObserveTick(metrics.TickOutcome_Success, time.Since(start))
	}
	return result, err
}

func (ecp *EVMChainPoller) runTick(ctx context.Context, logger *zap.Logger) (*chainPoller.TickResult, error) {
	fromBlock, toBlock, err := ecp.blockRange(ctx, logger)
	if err != nil {
		return nil, err
	}
	result := &chainPoller.TickResult{FromBlock: fromBlock, ToBlock: toBlock}
	if fromBlock > toBlock {
		logger.Sugar().Debugw("No new blocks to process",
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", toBlock),
		)
		result.Skipped = true
		return result, nil
	}

	logs, err := ecp.fetchLogs(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	result.LogCount = len(logs)

	logs, foreign := ecp.acceptLogs(logger, logs)

	timestamps := ecp.fetchBlockTimestamps(ctx, logger, logs)

	cache, err := ecp.resolveTokens(ctx, logger)
	if err != nil {
		return nil, err
	}

	events, degraded := ecp.buildEvents(logger, logs, timestamps, cache)
	result.EventCount = len(events)
	result.Degraded = degraded + foreign

	writeResult, err := ecp.writer.WriteBatch(ctx, ecp.config.ChainId, events, toBlock)
	if writeResult != nil {
		result.Inserted = writeResult.Inserted
		result.Duplicates = writeResult.Duplicates
	}
	if err != nil {
		return result, fmt.Errorf("failed to write events for blocks %d-%d: %w", fromBlock, toBlock, err)
	}
	return result, nil
}

// blockRange reads the watermark fresh from the store every tick.
func (ecp *EVMChainPoller) blockRange(ctx context.Context, logger *zap.Logger) (uint64, uint64, error) {
	head, err := ecp.ethClient.GetLatestBlock(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("error getting latest block: %w", err)
	}
	if head < ecp.config.Confirmations {
		return 1, 0, nil
	}
	toBlock := head - ecp.config.Confirmations

	var fromBlock uint64
	watermark, err := ecp.store.GetLastProcessedBlock(ctx, ecp.config.ChainId)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		if toBlock > ecp.config.Lookback {
			fromBlock = toBlock - ecp.config.Lookback
		}
		logger.Sugar().Infow("No watermark found, starting from lookback",
			zap.Uint64("head", head),
			zap.Uint64("fromBlock", fromBlock),
		)
	case err != nil:
		return 0, 0, fmt.Errorf("error getting last processed block: %w", err)
	default:
		fromBlock = watermark + 1
	}

	if ecp.config.MaxBlockRange > 0 && fromBlock <= toBlock && toBlock-fromBlock+1 > ecp.config.MaxBlockRange {
		toBlock = fromBlock + ecp.config.MaxBlockRange - 1
		logger.Sugar().Infow("Catching up, capping block range",
			zap.Uint64("head", head),
			zap.Uint64("toBlock", toBlock),
		)
	}
	return fromBlock, toBlock, nil
}

// fetchLogs issues one eth_getLogs per tracked event; any failure fails the whole fetch.
func (ecp *EVMChainPoller) fetchLogs(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*ethereum.EthereumEventLog, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, ecp.config.LogsFetchTimeout)
	defer cancel()

	results := make([][]*ethereum.EthereumEventLog, len(ecp.config.EventKinds))
	g, gCtx := errgroup.WithContext(ctxWithTimeout)
	for i, kind := range ecp.config.EventKinds {
		topic, err := contracts.EventTopic(string(kind))
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			logs, err := ecp.ethClient.GetLogs(gCtx, ecp.config.PoolAddress, [][]string{{topic}}, fromBlock, toBlock)
			if err != nil {
				return fmt.Errorf("failed to fetch %s logs for blocks %d-%d: %w", kind, fromBlock, toBlock, err)
			}
			results[i] = logs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var allLogs []*ethereum.EthereumEventLog
	for _, logs := range results {
		allLogs = append(allLogs, logs...)
	}
	return allLogs, nil
}

// acceptLogs drops removed logs and logs not emitted by the tracked pool. The second return is
// how many logs came from an address that does not resolve to this chain's pool.
func (ecp *EVMChainPoller) acceptLogs(logger *zap.Logger, logs []*ethereum.EthereumEventLog) ([]*ethereum.EthereumEventLog, int) {
	accepted := make([]*ethereum.EthereumEventLog, 0, len(logs))
	foreign := 0
	for _, lg := range logs {
		if lg.Removed {
			logger.Sugar().Debugw("Skipping removed log",
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Uint64("logIndex", lg.LogIndex.Value()),
			)
			continue
		}

		contract, err := ecp.contractStore.GetContractByAddress(lg.Address.Value(), ecp.config.ChainId)
		if err != nil || contract.Name != contracts.ContractName_Pool {
			logger.Sugar().Warnw("Skipping log from untracked contract",
				zap.String("address", lg.Address.Value()),
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Uint64("logIndex", lg.LogIndex.Value()),
				zap.Error(err),
			)
			ecp.metrics.ObserveDegraded(metrics.DegradedReason_ForeignLog)
			foreign++
			continue
		}
		accepted = append(accepted, lg)
	}
	return accepted, foreign
}

// fetchBlockTimestamps looks up each distinct block once. Blocks whose header cannot be read are
// left out of the map.
func (ecp *EVMChainPoller) fetchBlockTimestamps(ctx context.Context, logger *zap.Logger, logs []*ethereum.EthereumEventLog) map[uint64]uint64 {
	distinct := make(map[uint64]struct{})
	for _, lg := range logs {
		distinct[lg.BlockNumber.Value()] = struct{}{}
	}

	var mu sync.Mutex
	timestamps := make(map[uint64]uint64, len(distinct))

	var g errgroup.Group
	g.SetLimit(ecp.config.HeaderFetchConcurrency)
	for blockNumber := range distinct {
		g.Go(func() error {
			block, err := ecp.ethClient.GetBlockByNumber(ctx, blockNumber)
			if err != nil || block == nil {
				logger.Sugar().Warnw("Failed to fetch block header, using ingestion time",
					zap.Uint64("blockNumber", blockNumber),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			timestamps[blockNumber] = block.Timestamp.Value()
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return timestamps
}

func (ecp *EVMChainPoller) resolveTokens(ctx context.Context, logger *zap.Logger) (*tokenMetadata.Cache, error) {
	if ecp.tokenResolver == nil {
		return tokenMetadata.NewCache(), nil
	}
	cache, err := ecp.tokenResolver.Resolve(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		logger.Sugar().Warnw("Token metadata unavailable, all reserves will be UNKNOWN", zap.Error(err))
	}
	return cache, nil
}

func (ecp *EVMChainPoller) buildEvents(
	logger *zap.Logger,
	logs []*ethereum.EthereumEventLog,
	timestamps map[uint64]uint64,
	cache *tokenMetadata.Cache,
) ([]*chainPoller.Event, int) {
	ingestedAt := uint64(ecp.now().Unix())
	events := make([]*chainPoller.Event, 0, len(logs))
	degraded := 0

	for _, lg := range logs {
		decoded, err := ecp.logParser.DecodeLog(lg)
		if err != nil {
			logger.Sugar().Errorw("Failed to decode log",
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Uint64("logIndex", lg.LogIndex.Value()),
				zap.Uint64("blockNumber", lg.BlockNumber.Value()),
				zap.Error(err),
			)
			ecp.metrics.ObserveDegraded(metrics.DegradedReason_UndecodableLog)
			degraded++
			continue
		}

		event, err := EventFromLog(decoded, lg, cache)
		if err != nil {
			logger.Sugar().Errorw("Failed to build event from log",
				zap.String("transactionHash", lg.TransactionHash.Value()),
				zap.Uint64("logIndex", lg.LogIndex.Value()),
				zap.Error(err),
			)
			ecp.metrics.ObserveDegraded(metrics.DegradedReason_UndecodableLog)
			degraded++
			continue
		}

		recordDegraded := false
		if ts, ok := timestamps[event.BlockNumber]; ok {
			event.Timestamp = ts
		} else {
			event.Timestamp = ingestedAt
			ecp.metrics.ObserveDegraded(metrics.DegradedReason_MissingHeader)
			recordDegraded = true
		}
		if event.Symbol == tokenMetadata.UnknownSymbol {
			ecp.metrics.ObserveDegraded(metrics.DegradedReason_UnknownToken)
			recordDegraded = true
		}
		if recordDegraded {
			degraded++
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, degraded
}
