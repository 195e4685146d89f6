package pool

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
)

// Snapshot returns the persisted form of the current state.
func (p *Pool) Snapshot() model.PoolSnapshot {
	return p.SnapshotWith(nil)
}

// SnapshotWith runs capture under the same read lock as the snapshot. No
// mutation can land between the two, so token ledgers captured in capture
// match the returned sequence.
func (p *Pool) SnapshotWith(capture func()) model.PoolSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if capture != nil {
		capture()
	}
	reserveA, reserveB := p.ledger.Reserves()
	holders := p.ledger.Holders()
	shares := make(map[string]string, len(holders))
	for holder, amount := range holders {
		shares[strings.ToLower(holder.Hex())] = amount.Dec()
	}
	return model.PoolSnapshot{
		Address:     strings.ToLower(p.address.Hex()),
		TokenA:      strings.ToLower(p.tokenA.Address().Hex()),
		TokenB:      strings.ToLower(p.tokenB.Address().Hex()),
		Owner:       strings.ToLower(p.owner.Hex()),
		ReserveA:    reserveA.Dec(),
		ReserveB:    reserveB.Dec(),
		TotalShares: p.ledger.TotalShares().Dec(),
		Shares:      shares,
		Paused:      p.paused,
		Sequence:    p.sequence,
	}
}

// Restore replaces the ledger with snap. The snapshot must belong to this
// pool and satisfy the ledger invariants; on error the pool is unchanged.
func (p *Pool) Restore(snap model.PoolSnapshot) error {
	if err := p.matchIdentity(snap); err != nil {
		return err
	}

	next := NewLedger()
	reserveA, err := parseAmount(snap.ReserveA)
	if err != nil {
		return fmt.Errorf("parse reserve_a: %w", err)
	}
	reserveB, err := parseAmount(snap.ReserveB)
	if err != nil {
		return fmt.Errorf("parse reserve_b: %w", err)
	}
	next.reserveA, next.reserveB = reserveA, reserveB

	for holder, value := range snap.Shares {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("parse share holder %q: invalid address", holder)
		}
		amount, err := parseAmount(value)
		if err != nil {
			return fmt.Errorf("parse shares of %s: %w", holder, err)
		}
		if amount.IsZero() {
			continue
		}
		if err := next.CreditShares(common.HexToAddress(holder), amount); err != nil {
			return fmt.Errorf("restore shares of %s: %w", holder, err)
		}
	}
	total, err := parseAmount(snap.TotalShares)
	if err != nil {
		return fmt.Errorf("parse total_shares: %w", err)
	}
	if !total.Eq(next.totalShares) {
		return fmt.Errorf("total shares %s but holders sum to %s: %w", total.Dec(), next.totalShares.Dec(), ErrInvariantViolated)
	}
	if err := checkLedger(next); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger = next
	p.paused = snap.Paused
	p.sequence = snap.Sequence
	return nil
}

// CheckInvariants verifies the ledger invariants on the current state.
func (p *Pool) CheckInvariants() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkLedger(p.ledger)
}

func checkLedger(l *Ledger) error {
	sum := new(uint256.Int)
	for holder, amount := range l.shares {
		next, overflow := new(uint256.Int).AddOverflow(sum, amount)
		if overflow {
			return fmt.Errorf("sum shares at %s: %w", holder.Hex(), ErrOverflow)
		}
		sum = next
	}
	if !sum.Eq(l.totalShares) {
		return fmt.Errorf("total shares %s but holders sum to %s: %w", l.totalShares.Dec(), sum.Dec(), ErrInvariantViolated)
	}

	emptyA, emptyB, emptyShares := l.reserveA.IsZero(), l.reserveB.IsZero(), l.totalShares.IsZero()
	if emptyA != emptyB || emptyA != emptyShares {
		return fmt.Errorf("reserves (%s, %s) with total shares %s: %w",
			l.reserveA.Dec(), l.reserveB.Dec(), l.totalShares.Dec(), ErrInvariantViolated)
	}
	if !emptyShares && l.SharesOf(common.Address{}).Lt(uint256.NewInt(MinimumLiquidity)) {
		return fmt.Errorf("locked minimum liquidity missing: %w", ErrInvariantViolated)
	}
	return nil
}

func (p *Pool) matchIdentity(snap model.PoolSnapshot) error {
	checks := []struct {
		field string
		value string
		want  common.Address
	}{
		{"address", snap.Address, p.address},
		{"token_a", snap.TokenA, p.tokenA.Address()},
		{"token_b", snap.TokenB, p.tokenB.Address()},
		{"owner", snap.Owner, p.owner},
	}
	for _, c := range checks {
		if !common.IsHexAddress(c.value) || common.HexToAddress(c.value) != c.want {
			return fmt.Errorf("snapshot %s %q does not match %s: %w", c.field, c.value, c.want.Hex(), ErrInvariantViolated)
		}
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, err
	}
	return amount, nil
}
