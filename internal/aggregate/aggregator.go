package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom ignores the stored cursor and rebuilds every window from
	// the one containing this unix timestamp.
	RecomputeFrom uint64
	Cursor        CursorStore
}

// Sink receives aggregation results; *postgres.Store satisfies it.
type Sink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Stats summarises an aggregation run.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator folds the event journal into per-pool window metrics. The
// journal is expected in Seq order with non-decreasing timestamps, which is
// how the simulator writes it.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool

	// first Seq seen for each window start, pruned as windows close
	windowFirstSeq map[uint64]uint64
	latestWindow   uint64
	afterSeq       uint64
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:            cfg,
		sink:           sink,
		logger:         logger,
		accumulators:   make(map[string]*Accumulator),
		poolSeen:       make(map[string]model.Pool),
		windowFirstSeq: make(map[uint64]uint64),
	}
}

// Run aggregates the journal events that follow the stored cursor.
func (a *Aggregator) Run(ctx context.Context, source storage.EventSource) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("sink is nil")
	}
	if source == nil {
		return stats, fmt.Errorf("event source is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	if err := a.loadCursor(ctx); err != nil {
		return stats, err
	}
	var recomputeStart uint64
	if a.cfg.RecomputeFrom > 0 {
		recomputeStart = windowStart(a.cfg.RecomputeFrom, a.cfg.WindowSeconds)
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 64)

	err := source.StreamEvents(ctx, a.afterSeq, func(event model.PoolEvent, decodeErr error) error {
		stats.Total++
		if decodeErr != nil {
			stats.Failed++
			a.logger.Warn("decode pool event", zap.Error(decodeErr))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if event.Timestamp < recomputeStart {
			stats.Skipped++
			return nil
		}

		start := windowStart(event.Timestamp, a.cfg.WindowSeconds)
		if _, ok := a.windowFirstSeq[start]; !ok {
			a.windowFirstSeq[start] = event.Seq
		}
		if start > a.latestWindow {
			a.latestWindow = start
		}

		if event.Pool == "" {
			stats.Skipped++
			return nil
		}

		key := poolKey(event.Pool)
		acc := a.accumulators[key]
		if acc == nil {
			acc = NewAccumulator(event, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		} else if acc.WindowStart != start {
			metrics, pool := a.flushAccumulator(acc)
			batch = append(batch, metrics)
			if pool != nil {
				pools = append(pools, *pool)
			}
			next := NewAccumulator(event, start, start+a.cfg.WindowSeconds)
			next.carry(acc)
			acc = next
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(event); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.Uint64("seq", event.Seq), zap.String("pool", event.Pool), zap.String("event", event.EventName))
			return nil
		}

		if len(batch) >= a.cfg.BatchSize {
			stats.Windows += len(batch)
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveCursor(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, key := range sortedKeys(a.accumulators) {
		metrics, pool := a.flushAccumulator(a.accumulators[key])
		batch = append(batch, metrics)
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		stats.Windows += len(batch)
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return stats, err
		}
	}

	if err := a.saveCursor(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Uint64("after_seq", a.afterSeq),
	)

	return stats, nil
}

func (a *Aggregator) loadCursor(ctx context.Context) error {
	if a.cfg.RecomputeFrom > 0 || a.cfg.Cursor == nil {
		return nil
	}
	cursor, ok, err := a.cfg.Cursor.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if cursor.WindowSeconds != 0 && cursor.WindowSeconds != a.cfg.WindowSeconds {
		return fmt.Errorf("%w: stored %ds, configured %ds", ErrCursorWindow, cursor.WindowSeconds, a.cfg.WindowSeconds)
	}
	a.afterSeq = cursor.AfterSeq
	return nil
}

// saveCursor moves the cursor to just before the earliest window that can
// still change: any window with an unflushed accumulator, and the latest
// window, which later journal appends may extend.
func (a *Aggregator) saveCursor(ctx context.Context) error {
	if len(a.windowFirstSeq) == 0 {
		return nil
	}

	open := a.latestWindow
	if start, ok := minOpenWindowStart(a.accumulators); ok && start < open {
		open = start
	}
	if first, ok := a.windowFirstSeq[open]; ok && first > 0 {
		a.afterSeq = first - 1
	}
	for start := range a.windowFirstSeq {
		if start < open {
			delete(a.windowFirstSeq, start)
		}
	}

	if a.cfg.Cursor == nil {
		return nil
	}
	return a.cfg.Cursor.Save(ctx, model.AggregateCursor{
		AfterSeq:      a.afterSeq,
		WindowSeconds: a.cfg.WindowSeconds,
	})
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.sink.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) (model.PoolWindowMetrics, *model.Pool) {
	feeRateA, feeRateB := computeFeeRates(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB)

	metrics := model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		RejectedCount:  acc.RejectedCount,
		AddCount:       acc.AddCount,
		RemoveCount:    acc.RemoveCount,
		VolumeA:        formatAmount(acc.VolumeA),
		VolumeB:        formatAmount(acc.VolumeB),
		FeeA:           formatAmount(acc.FeeA),
		FeeB:           formatAmount(acc.FeeB),
		FeeRateA:       feeRateA,
		FeeRateB:       feeRateB,
		TVLA:           optionalAmount(acc.ReserveA),
		TVLB:           optionalAmount(acc.ReserveB),
		ClaimSupply:    optionalAmount(acc.ClaimSupply),
		APR:            computeAPR(acc.FeeA, acc.FeeB, acc.ReserveA, acc.ReserveB, a.cfg.WindowSeconds),
	}

	return metrics, a.registerPool(acc)
}

// registerPool returns a registry record the first time a pool is seen, or
// when an earlier sighting turns up.
func (a *Aggregator) registerPool(acc *Accumulator) *model.Pool {
	if acc.AssetA == "" || acc.AssetB == "" {
		a.logger.Warn("missing pool identity", zap.String("pool", acc.PoolAddress))
		return nil
	}

	key := poolKey(acc.PoolAddress)
	record := model.Pool{
		Address:      acc.PoolAddress,
		Alias:        acc.PoolAlias,
		AssetA:       acc.AssetA,
		AssetB:       acc.AssetB,
		ClaimToken:   acc.ClaimToken,
		FeeRate:      formatAmount(acc.FeeRate),
		FirstSeenSeq: acc.FirstSeq,
		FirstSeenTS:  acc.FirstTS,
	}

	if existing, ok := a.poolSeen[key]; ok && existing.FirstSeenSeq <= record.FirstSeenSeq {
		return nil
	}

	a.poolSeen[key] = record
	return &record
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func sortedKeys(acc map[string]*Accumulator) []string {
	keys := make([]string, 0, len(acc))
	for key := range acc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func minOpenWindowStart(acc map[string]*Accumulator) (uint64, bool) {
	var (
		min   uint64
		found bool
	)
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if !found || entry.WindowStart < min {
			min = entry.WindowStart
			found = true
		}
	}
	return min, found
}
