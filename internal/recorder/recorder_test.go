package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

var poolAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")

type memorySink struct {
	mu       sync.Mutex
	failures int
	logs     []model.LogRecord
}

func (s *memorySink) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.logs = append(s.logs, logs...)
	return nil
}

type memorySnapshots struct {
	saves []model.StateSnapshot
}

func (m *memorySnapshots) LoadSnapshot(context.Context, string) (model.StateSnapshot, bool, error) {
	if len(m.saves) == 0 {
		return model.StateSnapshot{}, false, nil
	}
	return m.saves[len(m.saves)-1], true, nil
}

func (m *memorySnapshots) SaveSnapshot(_ context.Context, snap model.StateSnapshot) error {
	m.saves = append(m.saves, snap)
	return nil
}

func testConfig() Config {
	return Config{
		PoolAddress:  poolAddress,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Now:          func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func TestRecorderFlushesInOrder(t *testing.T) {
	sink := &memorySink{}
	rec, err := New(testConfig(), sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec.Emit(1, pool.Paused{Account: poolAddress})
	rec.Emit(2, pool.Unpaused{Account: poolAddress})
	rec.Emit(3, pool.LiquidityRemoved{
		Provider: poolAddress, AmountA: uint256.NewInt(1), AmountB: uint256.NewInt(2), SharesBurned: uint256.NewInt(3),
	})
	if rec.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", rec.Pending())
	}

	if err := rec.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rec.Pending() != 0 || len(sink.logs) != 3 {
		t.Fatalf("pending=%d stored=%d", rec.Pending(), len(sink.logs))
	}
	for i, record := range sink.logs {
		if record.Sequence != uint64(i+1) || record.LogIndex != uint64(i) {
			t.Fatalf("record %d out of order: seq=%d index=%d", i, record.Sequence, record.LogIndex)
		}
	}
}

func TestRecorderRetriesAndRequeues(t *testing.T) {
	sink := &memorySink{failures: 3}
	rec, err := New(testConfig(), sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec.Emit(1, pool.Paused{Account: poolAddress})

	if err := rec.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush failure after retries")
	}
	if rec.Pending() != 1 {
		t.Fatalf("failed batch not requeued, pending=%d", rec.Pending())
	}

	rec.Emit(2, pool.Unpaused{Account: poolAddress})
	if err := rec.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(sink.logs) != 2 || sink.logs[0].Sequence != 1 || sink.logs[1].Sequence != 2 {
		t.Fatalf("unexpected stored logs %+v", sink.logs)
	}
}

func TestRecorderSavesSnapshotOnChange(t *testing.T) {
	sink := &memorySink{}
	snaps := &memorySnapshots{}
	seq := uint64(0)
	rec, err := New(testConfig(), sink, snaps, func() model.StateSnapshot {
		return model.StateSnapshot{Pool: model.PoolSnapshot{Address: poolAddress.Hex(), Sequence: seq}}
	}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := rec.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	if len(snaps.saves) != 1 {
		t.Fatalf("unchanged state saved %d times", len(snaps.saves))
	}
	seq = 4
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(snaps.saves) != 2 || snaps.saves[1].Pool.Sequence != 4 || snaps.saves[1].UpdatedAt == "" {
		t.Fatalf("unexpected saves %+v", snaps.saves)
	}
}

func TestRecorderRunFinalFlush(t *testing.T) {
	sink := &memorySink{}
	cfg := testConfig()
	cfg.FlushInterval = time.Hour
	rec, err := New(cfg, sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec.Emit(1, pool.Paused{Account: poolAddress})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.logs) != 1 {
		t.Fatalf("final flush missed logs: %d", len(sink.logs))
	}
}

func TestNewRequiresPairedSnapshotArgs(t *testing.T) {
	if _, err := New(testConfig(), &memorySink{}, &memorySnapshots{}, nil, nil); err == nil {
		t.Fatalf("expected error for store without snapshot func")
	}
	if _, err := New(testConfig(), nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}
