// Package aggregate rolls decoded pool events up into fixed time windows.
package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"liquidityPool/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	// RecomputeFrom restarts at this sequence, ignoring saved state.
	RecomputeFrom uint64
	StateStore    StateStore
}

// WindowSink receives finished windows. Writing the same window twice
// replaces it.
type WindowSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Stats summarises one Run.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator aggregates typed events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         WindowSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	processed    uint64
}

func NewAggregator(cfg Config, sink WindowSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates a typed events JSONL stream. Events at or below the resume
// sequence are skipped.
func (a *Aggregator) Run(ctx context.Context, input io.Reader) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("window sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startSeq, err := a.loadStartSequence(ctx)
	if err != nil {
		return stats, err
	}
	a.processed = startSeq

	scanner := bufio.NewScanner(input)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if record.Sequence <= startSeq {
			stats.Skipped++
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.PoolAddress)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.PoolAddress), zap.String("event", record.EventName), zap.Uint64("sequence", record.Sequence))
			continue
		}

		if record.Sequence > a.processed {
			a.processed = record.Sequence
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return stats, fmt.Errorf("store windows: %w", err)
			}
			stats.Windows += len(batch)
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return stats, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	keys := make([]string, 0, len(a.accumulators))
	for key := range a.accumulators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		batch = append(batch, a.accumulators[key].Metrics(a.cfg.WindowSeconds))
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return stats, fmt.Errorf("store windows: %w", err)
		}
		stats.Windows += len(batch)
	}

	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Uint64("last_sequence", a.processed),
	)

	return stats, nil
}

func (a *Aggregator) loadStartSequence(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the highest sequence whose window has been written. An
// open window is recomputed from its first event on the next run.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.processed)
	}

	safe := minOpenSequence(a.accumulators)
	if safe > 0 {
		safe--
	}
	return a.cfg.StateStore.Save(ctx, safe)
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenSequence(acc map[string]*Accumulator) uint64 {
	var lowest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if lowest == 0 || entry.FirstSequence < lowest {
			lowest = entry.FirstSequence
		}
	}
	return lowest
}
