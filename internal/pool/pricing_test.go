package pool

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestQuoteOut(t *testing.T) {
	cases := []struct {
		name                  string
		in, reserveIn, resOut uint64
		want                  uint64
	}{
		{"balanced", 100, 10_000, 10_000, 98},
		{"skewed", 1000, 20_000, 10_000, 474},
		{"large input", 10_000, 10_000, 10_000, 4992},
		{"fee eats dust", 1, 10_000, 10_000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := QuoteOut(u(tc.in), u(tc.reserveIn), u(tc.resOut))
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			if got.Uint64() != tc.want {
				t.Fatalf("quote = %s, want %d", got.Dec(), tc.want)
			}
		})
	}
}

func TestQuoteOutErrors(t *testing.T) {
	if _, err := QuoteOut(u(0), u(1), u(1)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if _, err := QuoteOut(u(1), u(0), u(1)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	max := new(uint256.Int).SetAllOne()
	if _, err := QuoteOut(max, u(1), u(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
