// Package recorder turns pool events into log records and persists them,
// together with periodic state snapshots, outside the pool lock.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPool/internal/eventlog"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
)

// Config holds runtime settings for the recorder.
type Config struct {
	PoolAddress   common.Address
	FlushInterval time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	// ShutdownTimeout bounds the final flush after Run's context ends.
	ShutdownTimeout time.Duration
	Now             func() time.Time
}

// SnapshotFunc captures the state to persist after a flush.
type SnapshotFunc func() model.StateSnapshot

// Recorder buffers encoded pool events and writes them to a LogSink.
type Recorder struct {
	cfg       Config
	encoder   *eventlog.Encoder
	sink      storage.LogSink
	snapshots storage.SnapshotStore
	snapshot  SnapshotFunc
	logger    *zap.Logger

	mu           sync.Mutex
	pending      []model.LogRecord
	nextLogIndex uint64
	lastSaved    uint64
	saved        bool
	dropped      int
}

var _ pool.Emitter = (*Recorder)(nil)

// New builds a Recorder. snapshots and snapshot may both be nil to disable
// state persistence.
func New(cfg Config, sink storage.LogSink, snapshots storage.SnapshotStore, snapshot SnapshotFunc, logger *zap.Logger) (*Recorder, error) {
	if sink == nil {
		return nil, fmt.Errorf("log sink is nil")
	}
	if (snapshots == nil) != (snapshot == nil) {
		return nil, fmt.Errorf("snapshot store and snapshot func must be set together")
	}
	encoder, err := eventlog.NewEncoder()
	if err != nil {
		return nil, err
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		cfg:       cfg,
		encoder:   encoder,
		sink:      sink,
		snapshots: snapshots,
		snapshot:  snapshot,
		logger:    logger,
	}, nil
}

// Emit encodes the event and queues it. It runs under the pool lock, so it
// only touches the in-memory buffer.
func (r *Recorder) Emit(seq uint64, event pool.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.encoder.Encode(r.cfg.PoolAddress, seq, r.nextLogIndex, r.cfg.Now(), event)
	if err != nil {
		r.dropped++
		r.logger.Error("encode pool event failed", zap.String("event", event.EventName()), zap.Uint64("sequence", seq), zap.Error(err))
		return
	}
	r.nextLogIndex++
	r.pending = append(r.pending, record)
}

// Pending returns the number of buffered records.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Flush writes buffered records, then saves a snapshot if one is newer than
// the last saved. Records that fail to write stay queued for the next flush.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) > 0 {
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			err := r.sink.PutLogBatch(ctx, batch)
			if err != nil {
				r.logger.Warn("store logs failed", zap.Error(err), zap.Int("logs", len(batch)))
			}
			return err
		})
		if err != nil {
			r.mu.Lock()
			r.pending = append(batch, r.pending...)
			r.mu.Unlock()
			return fmt.Errorf("store logs: %w", err)
		}
		r.logger.Debug("logs stored", zap.Int("logs", len(batch)), zap.Uint64("last_sequence", batch[len(batch)-1].Sequence))
	}

	if r.snapshots == nil {
		return nil
	}
	snap := r.snapshot()
	r.mu.Lock()
	unchanged := r.saved && snap.Pool.Sequence == r.lastSaved
	r.mu.Unlock()
	if unchanged {
		return nil
	}
	if snap.UpdatedAt == "" {
		snap.UpdatedAt = r.cfg.Now().UTC().Format(time.RFC3339Nano)
	}
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.snapshots.SaveSnapshot(ctx, snap)
		if err != nil && !errors.Is(err, storage.ErrStaleSnapshot) {
			r.logger.Warn("save snapshot failed", zap.Error(err), zap.Uint64("sequence", snap.Pool.Sequence))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	r.mu.Lock()
	if !r.saved || snap.Pool.Sequence > r.lastSaved {
		r.lastSaved = snap.Pool.Sequence
	}
	r.saved = true
	r.mu.Unlock()
	return nil
}

// Run flushes every FlushInterval until ctx ends, then performs a final
// flush bounded by ShutdownTimeout.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ShutdownTimeout)
			defer cancel()
			if err := r.Flush(final); err != nil {
				return fmt.Errorf("final flush: %w", err)
			}
			r.logger.Info("recorder stopped")
			return nil
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Error("flush failed", zap.Error(err), zap.Int("pending", r.Pending()))
			}
		}
	}
}

// Dropped returns how many events could not be encoded.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
