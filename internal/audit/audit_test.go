package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
	"liquidityPool/internal/token"
)

var (
	poolAddress = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	tokenAAt    = common.HexToAddress("0x000000000000000000000000000000000000a000")
	tokenBAt    = common.HexToAddress("0x000000000000000000000000000000000000b000")
	lp          = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func snapshot() model.PoolSnapshot {
	return model.PoolSnapshot{
		Address:     poolAddress.Hex(),
		TokenA:      tokenAAt.Hex(),
		TokenB:      tokenBAt.Hex(),
		ReserveA:    "1000",
		ReserveB:    "4000",
		TotalShares: "2000",
		Shares: map[string]string{
			"0x0000000000000000000000000000000000000000": "1000",
			lp.Hex(): "1000",
		},
		Sequence: 9,
	}
}

func funded(t *testing.T, addr common.Address, amount uint64) *token.Memory {
	t.Helper()
	tok := token.NewMemory(addr, "T")
	if err := tok.Mint(poolAddress, uint256.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func TestReconcileConsistentWithSurplus(t *testing.T) {
	readers := []token.BalanceReader{funded(t, tokenAAt, 1000), funded(t, tokenBAt, 4500)}
	report, err := Reconcile(context.Background(), snapshot(), readers, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.Consistent || !report.SharesOK || report.Err() != nil {
		t.Fatalf("expected consistent report: %+v", report)
	}
	if report.Tokens[0].Status != StatusOK || report.Tokens[1].Status != StatusSurplus || report.Tokens[1].Difference != "500" {
		t.Fatalf("unexpected token reports %+v", report.Tokens)
	}
}

func TestReconcileDetectsDeficit(t *testing.T) {
	readers := []token.BalanceReader{funded(t, tokenAAt, 999), funded(t, tokenBAt, 4000)}
	report, err := Reconcile(context.Background(), snapshot(), readers, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Consistent || report.Tokens[0].Status != StatusDeficit {
		t.Fatalf("deficit not reported: %+v", report)
	}
	if !errors.Is(report.Err(), ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", report.Err())
	}
}

func TestReconcileChecksShareSum(t *testing.T) {
	snap := snapshot()
	snap.TotalShares = "2500"
	readers := []token.BalanceReader{funded(t, tokenAAt, 1000), funded(t, tokenBAt, 4000)}
	report, err := Reconcile(context.Background(), snap, readers, nil)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Consistent || report.SharesOK {
		t.Fatalf("share mismatch not reported: %+v", report)
	}
}

func TestReconcileRejectsForeignToken(t *testing.T) {
	other := funded(t, common.HexToAddress("0x000000000000000000000000000000000000c000"), 1)
	if _, err := Reconcile(context.Background(), snapshot(), []token.BalanceReader{other}, nil); err == nil {
		t.Fatalf("expected error for token outside the pool")
	}
}
