package pool

import (
	"context"
	"errors"
	"testing"
)

func TestPauseBlocksMutations(t *testing.T) {
	f := newFixture(t, u(1_000_000))
	ctx := context.Background()
	if _, _, _, err := f.pool.AddLiquidity(ctx, user1, u(10_000), u(10_000)); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	if err := f.pool.Pause(user1); !errors.Is(err, ErrUnauthorizedCaller) {
		t.Fatalf("expected ErrUnauthorizedCaller, got %v", err)
	}
	if err := f.pool.Pause(owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, ok := f.events.last().event.(Paused); !ok {
		t.Fatalf("expected Paused event, got %+v", f.events.last())
	}
	if !f.pool.IsPaused() {
		t.Fatalf("pool not paused")
	}

	if _, _, _, err := f.pool.AddLiquidity(ctx, user2, u(100), u(100)); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused on add, got %v", err)
	}
	if _, _, err := f.pool.RemoveLiquidity(ctx, user1, u(100)); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused on remove, got %v", err)
	}
	if _, err := f.pool.Swap(ctx, user2, tokenAAt, u(100), nil, deadline()); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused on swap, got %v", err)
	}
	if _, err := f.pool.GetAmountOut(tokenAAt, u(100)); err != nil {
		t.Fatalf("reads must work while paused: %v", err)
	}
	if err := f.pool.Pause(owner); !errors.Is(err, ErrPoolPaused) {
		t.Fatalf("expected ErrPoolPaused on double pause, got %v", err)
	}

	if err := f.pool.Unpause(user2); !errors.Is(err, ErrUnauthorizedCaller) {
		t.Fatalf("expected ErrUnauthorizedCaller, got %v", err)
	}
	if err := f.pool.Unpause(owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, ok := f.events.last().event.(Unpaused); !ok {
		t.Fatalf("expected Unpaused event, got %+v", f.events.last())
	}
	if err := f.pool.Unpause(owner); !errors.Is(err, ErrPoolNotPaused) {
		t.Fatalf("expected ErrPoolNotPaused, got %v", err)
	}
	if _, _, _, err := f.pool.AddLiquidity(ctx, user2, u(100), u(100)); err != nil {
		t.Fatalf("add after unpause: %v", err)
	}
}
