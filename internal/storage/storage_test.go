package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"liquidityPool/internal/model"
)

const testPool = "0x1111111111111111111111111111111111111111"

func TestJsonlStorageAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	store := NewJsonlStorage(path)

	first := []model.LogRecord{{PoolAddress: testPool, Sequence: 1, Topics: []string{"0x01"}, Data: "0x"}}
	second := []model.LogRecord{
		{PoolAddress: testPool, Sequence: 2, LogIndex: 1, Topics: []string{"0x02"}, Data: "0x"},
		{PoolAddress: testPool, Sequence: 3, LogIndex: 2, Topics: []string{"0x03"}, Data: "0x"},
	}
	if err := store.PutLogBatch(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.PutLogBatch(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := store.PutLogBatch(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	defer store.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var last model.LogRecord
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("parse last line: %v", err)
	}
	if last.Sequence != 3 || last.LogIndex != 2 {
		t.Fatalf("unexpected last record %+v", last)
	}
}

func TestFileSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "state", "pool.json"))

	if _, ok, err := store.LoadSnapshot(ctx, testPool); err != nil || ok {
		t.Fatalf("expected no snapshot, ok=%v err=%v", ok, err)
	}

	snap := model.StateSnapshot{Pool: model.PoolSnapshot{Address: testPool, ReserveA: "10", Sequence: 5}}
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := store.LoadSnapshot(ctx, strings.ToUpper(testPool))
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.Pool.ReserveA != "10" || loaded.Pool.Sequence != 5 {
		t.Fatalf("loaded mismatch: %+v", loaded.Pool)
	}

	stale := snap
	stale.Pool.Sequence = 4
	if err := store.SaveSnapshot(ctx, stale); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("expected ErrStaleSnapshot, got %v", err)
	}
	if _, ok, err := store.LoadSnapshot(ctx, "0x2222222222222222222222222222222222222222"); err == nil || ok {
		t.Fatalf("expected foreign pool error")
	}
}
