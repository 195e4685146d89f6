package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

// Runs only when POOL_TEST_PG_DSN points at a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POOL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("POOL_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func TestStoreSnapshotSequenceGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	address := "0x00000000000000000000000000000000000000e1"
	if _, err := store.pool.Exec(ctx, `DELETE FROM pool_snapshots WHERE pool_address=$1`, address); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `DELETE FROM pool_reserve_history WHERE pool_address=$1`, address); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	snap := model.StateSnapshot{Pool: model.PoolSnapshot{
		Address: address, ReserveA: "1000", ReserveB: "4000", TotalShares: "2000", Sequence: 3,
	}}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	stale := snap
	stale.Pool.Sequence = 2
	if err := store.SaveSnapshot(ctx, stale); !errors.Is(err, storage.ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}

	loaded, ok, err := store.LoadSnapshot(ctx, address)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.Pool.Sequence != 3 || loaded.Pool.ReserveB != "4000" {
		t.Fatalf("loaded mismatch: %+v", loaded.Pool)
	}
}

func TestStorePutLogBatchIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	address := "0x00000000000000000000000000000000000000e2"
	if _, err := store.pool.Exec(ctx, `DELETE FROM pool_events WHERE pool_address=$1`, address); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	logs := []model.LogRecord{
		{PoolAddress: address, Sequence: 1, Topics: []string{"0xaa"}, Data: "0x"},
		{PoolAddress: address, Sequence: 2, Topics: []string{"0xbb", "0xcc"}, Data: "0x01"},
	}
	for i := 0; i < 2; i++ {
		if err := store.PutLogBatch(ctx, logs); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	count, err := store.EventCount(ctx, address)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestStoreWindowMetricsAndState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	address := "0x00000000000000000000000000000000000000e2"
	if _, err := store.pool.Exec(ctx, `DELETE FROM pool_window_metrics WHERE pool_address=$1`, address); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	window := model.PoolWindowMetrics{
		PoolAddress:    address,
		WindowSizeSecs: 300,
		WindowStart:    time.Unix(1_700_000_100, 0).UTC(),
		WindowEnd:      time.Unix(1_700_000_400, 0).UTC(),
		FirstSequence:  1,
		LastSequence:   4,
		SwapCount:      2,
		Volume:         map[string]string{"0xa": "200"},
		Fees:           map[string]string{"0xa": "0"},
		SharesMinted:   "9000",
		SharesBurned:   "0",
	}
	if err := store.UpsertWindowMetrics(ctx, []model.PoolWindowMetrics{window}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	window.SwapCount = 3
	if err := store.UpsertWindowMetrics(ctx, []model.PoolWindowMetrics{window}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	var swaps int64
	row := store.pool.QueryRow(ctx, `SELECT swap_count FROM pool_window_metrics WHERE pool_address=$1`, address)
	if err := row.Scan(&swaps); err != nil {
		t.Fatalf("query: %v", err)
	}
	if swaps != 3 {
		t.Fatalf("swap_count = %d", swaps)
	}

	if err := store.SaveState(ctx, "test-aggregate", 42); err != nil {
		t.Fatalf("save state: %v", err)
	}
	seq, ok, err := store.LoadState(ctx, "test-aggregate")
	if err != nil || !ok || seq != 42 {
		t.Fatalf("load state: %d %v %v", seq, ok, err)
	}
}
