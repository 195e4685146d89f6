package pool

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestLedgerShares(t *testing.T) {
	l := NewLedger()
	if err := l.CreditShares(user1, u(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.CreditShares(user2, u(300)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.DebitShares(user2, u(301)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
	if err := l.DebitShares(user2, u(300)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if l.TotalShares().Uint64() != 500 {
		t.Fatalf("total = %s", l.TotalShares().Dec())
	}
	if _, ok := l.Holders()[user2]; ok {
		t.Fatalf("zero balance should be dropped")
	}
}

func TestLedgerCreditOverflow(t *testing.T) {
	l := NewLedger()
	max := new(uint256.Int).SetAllOne()
	if err := l.CreditShares(user1, max); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.CreditShares(user2, u(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if !l.SharesOf(user2).IsZero() {
		t.Fatalf("failed credit was applied")
	}
}

func TestLedgerAdjustReservesAllOrNothing(t *testing.T) {
	l := NewLedger()
	if err := l.AdjustReserves(Credit(u(100)), Credit(u(200))); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := l.AdjustReserves(Debit(u(50)), Debit(u(201))); !errors.Is(err, ErrNegativeReserve) {
		t.Fatalf("expected ErrNegativeReserve, got %v", err)
	}
	a, b := l.Reserves()
	if a.Uint64() != 100 || b.Uint64() != 200 {
		t.Fatalf("partial adjust applied: (%s, %s)", a.Dec(), b.Dec())
	}
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := NewLedger()
	if err := l.CreditShares(user1, u(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	c := l.Clone()
	if err := c.CreditShares(user1, u(5)); err != nil {
		t.Fatalf("credit clone: %v", err)
	}
	if err := c.CreditShares(common.Address{}, u(1)); err != nil {
		t.Fatalf("credit clone: %v", err)
	}
	if l.SharesOf(user1).Uint64() != 10 || l.TotalShares().Uint64() != 10 {
		t.Fatalf("clone mutation leaked into original")
	}
}
