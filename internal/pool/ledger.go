package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Delta is a signed reserve adjustment.
type Delta struct {
	Amount   *uint256.Int
	Negative bool
}

// Credit returns a positive delta.
func Credit(amount *uint256.Int) Delta { return Delta{Amount: amount} }

// Debit returns a negative delta.
func Debit(amount *uint256.Int) Delta { return Delta{Amount: amount, Negative: true} }

// Ledger holds reserves and share balances. Stored values are never mutated
// in place, so Clone only needs a shallow copy of the share map.
type Ledger struct {
	reserveA    *uint256.Int
	reserveB    *uint256.Int
	totalShares *uint256.Int
	shares      map[common.Address]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		reserveA:    new(uint256.Int),
		reserveB:    new(uint256.Int),
		totalShares: new(uint256.Int),
		shares:      make(map[common.Address]*uint256.Int),
	}
}

// Clone returns a scratch copy that can be mutated and later swapped in.
func (l *Ledger) Clone() *Ledger {
	shares := make(map[common.Address]*uint256.Int, len(l.shares))
	for holder, amount := range l.shares {
		shares[holder] = amount
	}
	return &Ledger{
		reserveA:    l.reserveA,
		reserveB:    l.reserveB,
		totalShares: l.totalShares,
		shares:      shares,
	}
}

func (l *Ledger) Reserves() (*uint256.Int, *uint256.Int) {
	return l.reserveA.Clone(), l.reserveB.Clone()
}

func (l *Ledger) TotalShares() *uint256.Int {
	return l.totalShares.Clone()
}

func (l *Ledger) SharesOf(holder common.Address) *uint256.Int {
	if amount, ok := l.shares[holder]; ok {
		return amount.Clone()
	}
	return new(uint256.Int)
}

// CreditShares mints amount to holder and to the total together.
func (l *Ledger) CreditShares(holder common.Address, amount *uint256.Int) error {
	total, overflow := new(uint256.Int).AddOverflow(l.totalShares, amount)
	if overflow {
		return fmt.Errorf("credit shares: %w", ErrOverflow)
	}
	// holder balance <= total, so it cannot overflow once the total did not.
	l.shares[holder] = new(uint256.Int).Add(l.SharesOf(holder), amount)
	l.totalShares = total
	return nil
}

// DebitShares burns amount from holder and from the total together.
func (l *Ledger) DebitShares(holder common.Address, amount *uint256.Int) error {
	balance := l.SharesOf(holder)
	if balance.Lt(amount) {
		return fmt.Errorf("debit %s of %s: %w", amount.Dec(), holder.Hex(), ErrInsufficientShares)
	}
	remaining := new(uint256.Int).Sub(balance, amount)
	if remaining.IsZero() {
		delete(l.shares, holder)
	} else {
		l.shares[holder] = remaining
	}
	l.totalShares = new(uint256.Int).Sub(l.totalShares, amount)
	return nil
}

// AdjustReserves applies both deltas or neither.
func (l *Ledger) AdjustReserves(deltaA, deltaB Delta) error {
	nextA, err := applyDelta(l.reserveA, deltaA)
	if err != nil {
		return fmt.Errorf("reserve a: %w", err)
	}
	nextB, err := applyDelta(l.reserveB, deltaB)
	if err != nil {
		return fmt.Errorf("reserve b: %w", err)
	}
	l.reserveA = nextA
	l.reserveB = nextB
	return nil
}

// Holders returns a copy of every non-zero share balance.
func (l *Ledger) Holders() map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(l.shares))
	for holder, amount := range l.shares {
		out[holder] = amount.Clone()
	}
	return out
}

func applyDelta(current *uint256.Int, delta Delta) (*uint256.Int, error) {
	if delta.Amount == nil {
		return current, nil
	}
	if delta.Negative {
		next, underflow := new(uint256.Int).SubOverflow(current, delta.Amount)
		if underflow {
			return nil, ErrNegativeReserve
		}
		return next, nil
	}
	next, overflow := new(uint256.Int).AddOverflow(current, delta.Amount)
	if overflow {
		return nil, ErrOverflow
	}
	return next, nil
}
