package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"pgregory.net/rapid"
)

// TestLedgerInvariantsProperty drives random operation sequences and checks
// the ledger invariants after each step.
func TestLedgerInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t, u(1_000_000_000))
		ctx := context.Background()
		users := []common.Address{user1, user2}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			caller := rapid.SampledFrom(users).Draw(t, "caller")
			op := rapid.IntRange(0, 2).Draw(t, "op")
			reserveA, reserveB := f.pool.Reserves()

			switch op {
			case 0:
				a := rapid.Uint64Range(1, 5_000_000).Draw(t, "amountA")
				b := rapid.Uint64Range(1, 5_000_000).Draw(t, "amountB")
				_, _, _, err := f.pool.AddLiquidity(ctx, caller, u(a), u(b))
				if err != nil && !errors.Is(err, ErrInsufficientLiquidityMinted) {
					t.Fatalf("add liquidity: %v", err)
				}
			case 1:
				held := f.pool.SharesOf(caller)
				if held.IsZero() {
					continue
				}
				burn := rapid.Uint64Range(1, held.Uint64()).Draw(t, "burn")
				_, _, err := f.pool.RemoveLiquidity(ctx, caller, u(burn))
				if err != nil && !errors.Is(err, ErrInsufficientLiquidityBurned) {
					t.Fatalf("remove liquidity: %v", err)
				}
			case 2:
				tokenIn := rapid.SampledFrom([]common.Address{tokenAAt, tokenBAt}).Draw(t, "tokenIn")
				amountIn := rapid.Uint64Range(1, 1_000_000).Draw(t, "amountIn")
				_, err := f.pool.Swap(ctx, caller, tokenIn, u(amountIn), nil, deadline())
				switch {
				case err == nil:
					a1, b1 := f.pool.Reserves()
					if product(a1, b1).Lt(product(reserveA, reserveB)) {
						t.Fatalf("k decreased")
					}
				case errors.Is(err, ErrInsufficientLiquidity), errors.Is(err, ErrInsufficientOutputAmount):
				default:
					t.Fatalf("swap: %v", err)
				}
			}

			if err := f.pool.CheckInvariants(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			a, b := f.pool.Reserves()
			if bal := balance(t, f.tokenA, poolAddr); !bal.Eq(a) {
				t.Fatalf("reserve a %s != pool balance %s", a.Dec(), bal.Dec())
			}
			if bal := balance(t, f.tokenB, poolAddr); !bal.Eq(b) {
				t.Fatalf("reserve b %s != pool balance %s", b.Dec(), bal.Dec())
			}
		}
	})
}

func product(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(a, b)
}
