package pool

import "errors"

var (
	ErrInvalidToken                = errors.New("invalid token")
	ErrZeroAmount                  = errors.New("amount must be greater than zero")
	ErrInsufficientShares          = errors.New("insufficient shares")
	ErrInvalidDeadline             = errors.New("deadline has passed")
	ErrSlippageExceeded            = errors.New("output amount below minimum")
	ErrPoolPaused                  = errors.New("pool is paused")
	ErrPoolNotPaused               = errors.New("pool is not paused")
	ErrUnauthorizedCaller          = errors.New("caller is not the owner")
	ErrTokenTransferFailed         = errors.New("token transfer failed")
	ErrCompensationFailed          = errors.New("compensating transfer failed, pool paused")
	ErrInvalidCaller               = errors.New("invalid caller")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrOverflow                    = errors.New("arithmetic overflow")
	ErrNegativeReserve             = errors.New("reserve would become negative")
	ErrInvariantViolated           = errors.New("pool invariant violated")
)
