package pool

import (
	"context"
	"errors"
	"testing"

	"liquidityPool/internal/model"
)

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, u(1_000_000))
	ctx := context.Background()
	if _, _, _, err := f.pool.AddLiquidity(ctx, user1, u(10_000), u(40_000)); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, err := f.pool.Swap(ctx, user2, tokenAAt, u(500), nil, deadline()); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if err := f.pool.Pause(owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	snap := f.pool.Snapshot()

	restored := newFixture(t, u(1_000_000)).pool
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	a1, b1 := f.pool.Reserves()
	a2, b2 := restored.Reserves()
	if !a1.Eq(a2) || !b1.Eq(b2) {
		t.Fatalf("reserves differ after restore")
	}
	if !restored.SharesOf(user1).Eq(f.pool.SharesOf(user1)) || !restored.IsPaused() {
		t.Fatalf("shares or pause flag lost")
	}
	if restored.Sequence() != f.pool.Sequence() {
		t.Fatalf("sequence = %d, want %d", restored.Sequence(), f.pool.Sequence())
	}
}

func TestRestoreRejectsBrokenSnapshots(t *testing.T) {
	f := newFixture(t, u(1_000_000))
	if _, _, _, err := f.pool.AddLiquidity(context.Background(), user1, u(10_000), u(10_000)); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	good := f.pool.Snapshot()

	wrongSum := good
	wrongSum.TotalShares = "10001"

	emptyReserve := good
	emptyReserve.ReserveB = "0"

	foreign := good
	foreign.TokenA = "0x000000000000000000000000000000000000c000"

	badAmount := good
	badAmount.ReserveA = "-5"

	cases := []struct {
		name string
		snap model.PoolSnapshot
	}{
		{"share sum", wrongSum},
		{"empty reserve", emptyReserve},
		{"foreign token", foreign},
		{"bad amount", badAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := newFixture(t, u(1)).pool
			if err := target.Restore(tc.snap); err == nil {
				t.Fatalf("expected restore to fail")
			} else if tc.name != "bad amount" && !errors.Is(err, ErrInvariantViolated) {
				t.Fatalf("expected ErrInvariantViolated, got %v", err)
			}
			if !target.TotalShares().IsZero() {
				t.Fatalf("failed restore changed state")
			}
		})
	}
}

func TestSnapshotWithCapturesTokensAtSameSequence(t *testing.T) {
	f := newFixture(t, u(1_000_000))
	ctx := context.Background()
	if _, _, _, err := f.pool.AddLiquidity(ctx, user1, u(10_000), u(10_000)); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	var tokenA model.TokenSnapshot
	snap := f.pool.SnapshotWith(func() {
		tokenA = f.tokenA.Snapshot()
	})
	if tokenA.Balances[poolAddr.Hex()] != snap.ReserveA {
		t.Fatalf("pool balance %s, reserve %s", tokenA.Balances[poolAddr.Hex()], snap.ReserveA)
	}
	if snap.Sequence != 1 {
		t.Fatalf("sequence = %d", snap.Sequence)
	}
}
