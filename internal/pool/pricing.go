package pool

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// MinimumLiquidity is locked to the zero address on the first deposit.
	MinimumLiquidity = 1000
	// FeeNumerator / FeeDenominator is the swap fee taken from the input (0.3%).
	FeeNumerator   = 30
	FeeDenominator = 10000
)

var (
	feeKeep  = uint256.NewInt(FeeDenominator - FeeNumerator)
	feeDenom = uint256.NewInt(FeeDenominator)
)

// QuoteOut prices amountIn against the constant-product curve:
//
//	amountInAfterFee = amountIn * (FeeDenominator - FeeNumerator) / FeeDenominator
//	amountOut        = amountInAfterFee * reserveOut / (reserveIn + amountInAfterFee)
//
// Both divisions truncate, which always favors the pool.
func QuoteOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	afterFee, overflow := new(uint256.Int).MulOverflow(amountIn, feeKeep)
	if overflow {
		return nil, fmt.Errorf("quote fee: %w", ErrOverflow)
	}
	afterFee.Div(afterFee, feeDenom)

	numerator, overflow := new(uint256.Int).MulOverflow(afterFee, reserveOut)
	if overflow {
		return nil, fmt.Errorf("quote numerator: %w", ErrOverflow)
	}
	denominator, overflow := new(uint256.Int).AddOverflow(reserveIn, afterFee)
	if overflow {
		return nil, fmt.Errorf("quote denominator: %w", ErrOverflow)
	}
	return numerator.Div(numerator, denominator), nil
}

// mulDiv returns a*b/c, truncated, failing on overflow of a*b.
func mulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return product.Div(product, c), nil
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
