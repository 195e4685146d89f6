// Package pool implements a two-token constant-product liquidity pool: the
// reserve and share ledger, the swap pricing engine and the pause guard.
//
// Every mutating operation holds the pool write lock for its whole duration,
// token calls included, so mutations are applied in a single total order.
// Reads take the read lock and return copies.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/token"
)

// Config wires a Pool to its collaborators.
type Config struct {
	// Address is the pool's own holder identity on both tokens.
	Address common.Address
	TokenA  token.Token
	TokenB  token.Token
	Owner   common.Address
	Emitter Emitter
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// Pool is the ledger and swap engine for one token pair.
type Pool struct {
	address common.Address
	owner   common.Address
	tokenA  token.Token
	tokenB  token.Token
	emitter Emitter
	now     func() time.Time
	logger  *zap.Logger

	mu       sync.RWMutex
	ledger   *Ledger
	paused   bool
	sequence uint64
}

// direction is the swap side, resolved once per swap.
type direction int

const (
	aToB direction = iota
	bToA
)

// New validates the pair and returns an empty, unpaused pool.
func New(cfg Config) (*Pool, error) {
	if cfg.TokenA == nil || cfg.TokenB == nil {
		return nil, fmt.Errorf("token collaborator is nil: %w", ErrInvalidToken)
	}
	zero := common.Address{}
	a, b := cfg.TokenA.Address(), cfg.TokenB.Address()
	if a == zero || b == zero {
		return nil, fmt.Errorf("zero token address: %w", ErrInvalidToken)
	}
	if a == b {
		return nil, fmt.Errorf("identical tokens %s: %w", a.Hex(), ErrInvalidToken)
	}
	if cfg.Owner == zero {
		return nil, fmt.Errorf("zero owner: %w", ErrInvalidCaller)
	}
	if cfg.Address == zero {
		return nil, fmt.Errorf("zero pool address: %w", ErrInvalidCaller)
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = nopEmitter{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		address: cfg.Address,
		owner:   cfg.Owner,
		tokenA:  cfg.TokenA,
		tokenB:  cfg.TokenB,
		emitter: emitter,
		now:     now,
		logger:  logger,
		ledger:  NewLedger(),
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Owner() common.Address   { return p.owner }
func (p *Pool) TokenA() common.Address  { return p.tokenA.Address() }
func (p *Pool) TokenB() common.Address  { return p.tokenB.Address() }

// Reserves returns the current reserves.
func (p *Pool) Reserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Reserves()
}

func (p *Pool) TotalShares() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.TotalShares()
}

func (p *Pool) SharesOf(holder common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.SharesOf(holder)
}

func (p *Pool) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Sequence is the number of successful mutations so far.
func (p *Pool) Sequence() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sequence
}

// GetAmountOut quotes a swap of amountIn of tokenIn against current reserves.
func (p *Pool) GetAmountOut(tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	dir, err := p.resolve(tokenIn)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	reserveIn, reserveOut := p.sidedReserves(dir)
	p.mu.RUnlock()
	return QuoteOut(amountIn, reserveIn, reserveOut)
}

// AddLiquidity deposits up to the desired amounts at the current ratio and
// returns the amounts actually taken and the shares minted to caller.
func (p *Pool) AddLiquidity(ctx context.Context, caller common.Address, amountADesired, amountBDesired *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkMutable(caller); err != nil {
		return nil, nil, nil, err
	}
	if isZero(amountADesired) || isZero(amountBDesired) {
		return nil, nil, nil, ErrZeroAmount
	}

	next := p.ledger.Clone()
	reserveA, reserveB := next.Reserves()
	totalShares := next.TotalShares()

	var amountA, amountB, minted *uint256.Int
	if totalShares.IsZero() {
		amountA, amountB = amountADesired.Clone(), amountBDesired.Clone()
		product, overflow := new(uint256.Int).MulOverflow(amountA, amountB)
		if overflow {
			return nil, nil, nil, fmt.Errorf("genesis product: %w", ErrOverflow)
		}
		minted = new(uint256.Int).Sqrt(product)
		// Base units: a deposit must mint strictly more than the locked
		// amount so the depositor receives at least one share.
		locked := uint256.NewInt(MinimumLiquidity)
		if !minted.Gt(locked) {
			return nil, nil, nil, fmt.Errorf("genesis liquidity %s: %w", minted.Dec(), ErrInsufficientLiquidityMinted)
		}
		if err := next.CreditShares(common.Address{}, locked); err != nil {
			return nil, nil, nil, err
		}
		if err := next.CreditShares(caller, new(uint256.Int).Sub(minted, locked)); err != nil {
			return nil, nil, nil, err
		}
	} else {
		var err error
		amountA, amountB, err = optimalAmounts(amountADesired, amountBDesired, reserveA, reserveB)
		if err != nil {
			return nil, nil, nil, err
		}
		sharesA, err := mulDiv(amountA, totalShares, reserveA)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("shares for a: %w", err)
		}
		sharesB, err := mulDiv(amountB, totalShares, reserveB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("shares for b: %w", err)
		}
		minted = minInt(sharesA, sharesB)
		if minted.IsZero() {
			return nil, nil, nil, ErrInsufficientLiquidityMinted
		}
		if err := next.CreditShares(caller, minted); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := next.AdjustReserves(Credit(amountA), Credit(amountB)); err != nil {
		return nil, nil, nil, err
	}

	moves := p.newTransferBatch(ctx)
	if err := moves.pull(p.tokenA, caller, amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := moves.pull(p.tokenB, caller, amountB); err != nil {
		if stuck := moves.rollback(); len(stuck) > 0 {
			// The pool keeps the unreturned deposit as surplus above its reserves.
			return nil, nil, nil, p.failClosed(stuck, err)
		}
		return nil, nil, nil, err
	}

	p.commit(next, LiquidityAdded{
		Provider:     caller,
		AmountA:      amountA.Clone(),
		AmountB:      amountB.Clone(),
		SharesMinted: minted.Clone(),
	})
	p.logger.Debug("liquidity added",
		zap.String("provider", caller.Hex()),
		zap.String("amount_a", amountA.Dec()),
		zap.String("amount_b", amountB.Dec()),
		zap.String("shares", minted.Dec()),
	)
	return amountA, amountB, minted, nil
}

// RemoveLiquidity burns sharesToBurn from caller and returns the
// proportional reserves.
func (p *Pool) RemoveLiquidity(ctx context.Context, caller common.Address, sharesToBurn *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkMutable(caller); err != nil {
		return nil, nil, err
	}
	if isZero(sharesToBurn) {
		return nil, nil, ErrZeroAmount
	}

	next := p.ledger.Clone()
	reserveA, reserveB := next.Reserves()
	totalShares := next.TotalShares()
	if next.SharesOf(caller).Lt(sharesToBurn) {
		return nil, nil, ErrInsufficientShares
	}

	amountA, err := mulDiv(sharesToBurn, reserveA, totalShares)
	if err != nil {
		return nil, nil, fmt.Errorf("redeem a: %w", err)
	}
	amountB, err := mulDiv(sharesToBurn, reserveB, totalShares)
	if err != nil {
		return nil, nil, fmt.Errorf("redeem b: %w", err)
	}
	if amountA.IsZero() || amountB.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	if err := next.DebitShares(caller, sharesToBurn); err != nil {
		return nil, nil, err
	}
	if err := next.AdjustReserves(Debit(amountA), Debit(amountB)); err != nil {
		return nil, nil, err
	}

	moves := p.newTransferBatch(ctx)
	if err := moves.push(p.tokenA, caller, amountA); err != nil {
		return nil, nil, err
	}
	if err := moves.push(p.tokenB, caller, amountB); err != nil {
		if stuck := moves.rollback(); len(stuck) > 0 {
			return nil, nil, p.settlePartialRemove(caller, sharesToBurn, stuck, err)
		}
		return nil, nil, err
	}

	p.commit(next, LiquidityRemoved{
		Provider:     caller,
		AmountA:      amountA.Clone(),
		AmountB:      amountB.Clone(),
		SharesBurned: sharesToBurn.Clone(),
	})
	p.logger.Debug("liquidity removed",
		zap.String("provider", caller.Hex()),
		zap.String("amount_a", amountA.Dec()),
		zap.String("amount_b", amountB.Dec()),
		zap.String("shares", sharesToBurn.Dec()),
	)
	return amountA, amountB, nil
}

// settlePartialRemove books a payout the holder kept after the rest of the
// removal failed. Reserves drop by what left the pool and the holder pays
// for it with half of sharesToBurn, rounded up: at the pool's own price one
// side of a removal is worth half of it. The pool is then paused.
func (p *Pool) settlePartialRemove(caller common.Address, sharesToBurn *uint256.Int, stuck []transfer, cause error) error {
	next := p.ledger.Clone()
	paid := LiquidityRemoved{Provider: caller, AmountA: new(uint256.Int), AmountB: new(uint256.Int)}
	for _, t := range stuck {
		if t.kind != pushKind {
			continue
		}
		switch t.token.Address() {
		case p.tokenA.Address():
			if err := next.AdjustReserves(Debit(t.amount), Delta{}); err != nil {
				return p.failClosed(stuck, fmt.Errorf("%w; book payout: %w", cause, err))
			}
			paid.AmountA.Add(paid.AmountA, t.amount)
		case p.tokenB.Address():
			if err := next.AdjustReserves(Delta{}, Debit(t.amount)); err != nil {
				return p.failClosed(stuck, fmt.Errorf("%w; book payout: %w", cause, err))
			}
			paid.AmountB.Add(paid.AmountB, t.amount)
		}
	}

	burn := new(uint256.Int).AddUint64(sharesToBurn, 1)
	burn.Rsh(burn, 1)
	if err := next.DebitShares(caller, burn); err != nil {
		return p.failClosed(stuck, fmt.Errorf("%w; burn shares: %w", cause, err))
	}
	paid.SharesBurned = burn
	p.commit(next, paid)
	return p.failClosed(stuck, cause)
}

// Swap sells amountIn of tokenIn for the other token. deadline is a unix
// timestamp in seconds; the swap is rejected once the clock is past it.
func (p *Pool) Swap(ctx context.Context, caller, tokenIn common.Address, amountIn, minAmountOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkMutable(caller); err != nil {
		return nil, err
	}
	if now := p.now().Unix(); now < 0 || uint64(now) > deadline {
		return nil, ErrInvalidDeadline
	}
	if isZero(amountIn) {
		return nil, ErrZeroAmount
	}
	dir, err := p.resolve(tokenIn)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := p.sidedReserves(dir)
	amountOut, err := QuoteOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	// A swap that pays nothing is refused even with no minimum set.
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if minAmountOut != nil && amountOut.Lt(minAmountOut) {
		return nil, fmt.Errorf("got %s want at least %s: %w", amountOut.Dec(), minAmountOut.Dec(), ErrSlippageExceeded)
	}

	next := p.ledger.Clone()
	tokIn, tokOut := p.tokenA, p.tokenB
	deltaA, deltaB := Credit(amountIn), Debit(amountOut)
	if dir == bToA {
		tokIn, tokOut = p.tokenB, p.tokenA
		deltaA, deltaB = Debit(amountOut), Credit(amountIn)
	}
	if err := next.AdjustReserves(deltaA, deltaB); err != nil {
		return nil, err
	}
	if err := checkProduct(p.ledger, next); err != nil {
		return nil, err
	}

	moves := p.newTransferBatch(ctx)
	if err := moves.pull(tokIn, caller, amountIn); err != nil {
		return nil, err
	}
	if err := moves.push(tokOut, caller, amountOut); err != nil {
		if stuck := moves.rollback(); len(stuck) > 0 {
			return nil, p.failClosed(stuck, err)
		}
		return nil, err
	}

	p.commit(next, Swapped{
		Trader:    caller,
		TokenIn:   tokIn.Address(),
		AmountIn:  amountIn.Clone(),
		TokenOut:  tokOut.Address(),
		AmountOut: amountOut.Clone(),
	})
	p.logger.Debug("swapped",
		zap.String("trader", caller.Hex()),
		zap.String("token_in", tokIn.Address().Hex()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
	)
	return amountOut, nil
}

// checkMutable runs the entry checks shared by all liquidity and swap calls.
func (p *Pool) checkMutable(caller common.Address) error {
	if p.paused {
		return ErrPoolPaused
	}
	if caller == (common.Address{}) || caller == p.address {
		return ErrInvalidCaller
	}
	return nil
}

func (p *Pool) resolve(tokenIn common.Address) (direction, error) {
	switch tokenIn {
	case p.tokenA.Address():
		return aToB, nil
	case p.tokenB.Address():
		return bToA, nil
	default:
		return 0, fmt.Errorf("token %s: %w", tokenIn.Hex(), ErrInvalidToken)
	}
}

// sidedReserves must be called with the lock held.
func (p *Pool) sidedReserves(dir direction) (*uint256.Int, *uint256.Int) {
	reserveA, reserveB := p.ledger.Reserves()
	if dir == bToA {
		return reserveB, reserveA
	}
	return reserveA, reserveB
}

func (p *Pool) commit(next *Ledger, event Event) {
	p.ledger = next
	p.sequence++
	p.emitter.Emit(p.sequence, event)
}

func optimalAmounts(amountADesired, amountBDesired, reserveA, reserveB *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	amountBOptimal, err := mulDiv(amountADesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, fmt.Errorf("optimal b: %w", err)
	}
	if !amountBOptimal.Gt(amountBDesired) {
		if amountBOptimal.IsZero() {
			return nil, nil, ErrInsufficientLiquidityMinted
		}
		return amountADesired.Clone(), amountBOptimal, nil
	}
	amountAOptimal, err := mulDiv(amountBDesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, fmt.Errorf("optimal a: %w", err)
	}
	if amountAOptimal.IsZero() {
		return nil, nil, ErrInsufficientLiquidityMinted
	}
	return amountAOptimal, amountBDesired.Clone(), nil
}

// checkProduct rejects a reserve change that lowers reserveA * reserveB.
func checkProduct(before, after *Ledger) error {
	a0, b0 := before.Reserves()
	a1, b1 := after.Reserves()
	k0, overflow := new(uint256.Int).MulOverflow(a0, b0)
	if overflow {
		return fmt.Errorf("product before: %w", ErrOverflow)
	}
	k1, overflow := new(uint256.Int).MulOverflow(a1, b1)
	if overflow {
		return fmt.Errorf("product after: %w", ErrOverflow)
	}
	if k1.Lt(k0) {
		return fmt.Errorf("k decreased from %s to %s: %w", k0.Dec(), k1.Dec(), ErrInvariantViolated)
	}
	return nil
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}
