package token

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newFunded(t *testing.T) *Memory {
	t.Helper()
	tok := NewMemory(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "TKA")
	if err := tok.Mint(alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func TestMemoryTransfer(t *testing.T) {
	ctx := context.Background()
	tok := newFunded(t)

	if err := tok.Transfer(ctx, alice, bob, uint256.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balA, _ := tok.BalanceOf(ctx, alice)
	balB, _ := tok.BalanceOf(ctx, bob)
	if balA.Uint64() != 600 || balB.Uint64() != 400 {
		t.Fatalf("balances mismatch: alice=%s bob=%s", balA.Dec(), balB.Dec())
	}

	err := tok.Transfer(ctx, bob, carol, uint256.NewInt(401))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := tok.Transfer(ctx, alice, common.Address{}, uint256.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestMemoryTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	tok := newFunded(t)

	if err := tok.TransferFrom(ctx, bob, alice, carol, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := tok.Approve(ctx, alice, bob, uint256.NewInt(300)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(ctx, bob, alice, carol, uint256.NewInt(200)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	allowance, _ := tok.Allowance(ctx, alice, bob)
	if allowance.Uint64() != 100 {
		t.Fatalf("allowance mismatch: %s", allowance.Dec())
	}
	balC, _ := tok.BalanceOf(ctx, carol)
	if balC.Uint64() != 200 {
		t.Fatalf("carol balance mismatch: %s", balC.Dec())
	}
}

func TestMemoryFailHook(t *testing.T) {
	ctx := context.Background()
	tok := newFunded(t)
	boom := errors.New("boom")
	tok.SetFailHook(func(op Op, from, to common.Address, amount *uint256.Int) error {
		if op == OpTransfer {
			return boom
		}
		return nil
	})

	if err := tok.Transfer(ctx, alice, bob, uint256.NewInt(1)); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	bal, _ := tok.BalanceOf(ctx, alice)
	if bal.Uint64() != 1000 {
		t.Fatalf("failed transfer moved funds: %s", bal.Dec())
	}

	tok.SetFailHook(nil)
	if err := tok.Transfer(ctx, alice, bob, uint256.NewInt(1)); err != nil {
		t.Fatalf("transfer after clearing hook: %v", err)
	}
}

func TestMemorySnapshotRestore(t *testing.T) {
	ctx := context.Background()
	tok := newFunded(t)
	if err := tok.Transfer(ctx, alice, bob, uint256.NewInt(250)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := tok.Approve(ctx, bob, carol, uint256.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	snap := tok.Snapshot()
	restored := NewMemory(tok.Address(), "TKA")
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	balB, _ := restored.BalanceOf(ctx, bob)
	allowance, _ := restored.Allowance(ctx, bob, carol)
	if balB.Uint64() != 250 || allowance.Uint64() != 50 {
		t.Fatalf("restored state mismatch: bob=%s allowance=%s", balB.Dec(), allowance.Dec())
	}
	if restored.TotalSupply().Uint64() != 1000 {
		t.Fatalf("total supply mismatch: %s", restored.TotalSupply().Dec())
	}

	snap.TotalSupply = "999"
	if err := restored.Restore(snap); err == nil {
		t.Fatalf("expected error for inconsistent supply")
	}
}
