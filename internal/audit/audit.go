// Package audit reconciles the pool ledger with the balances the token
// contracts actually report for the pool.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
	"liquidityPool/internal/token"
)

// ErrInconsistent marks a report in which a reserve exceeds the balance
// backing it, or the share ledger does not add up.
var ErrInconsistent = errors.New("pool ledger inconsistent")

const (
	StatusOK      = "ok"
	StatusSurplus = "surplus"
	StatusDeficit = "deficit"
)

// TokenReport compares one reserve with the pool's token balance.
type TokenReport struct {
	Token      string `json:"token"`
	Reserve    string `json:"reserve"`
	Balance    string `json:"balance"`
	Difference string `json:"difference"`
	Status     string `json:"status"`
}

// Report is the outcome of one reconciliation.
type Report struct {
	PoolAddress string        `json:"pool_address"`
	Sequence    uint64        `json:"sequence"`
	Tokens      []TokenReport `json:"tokens"`
	SharesOK    bool          `json:"shares_ok"`
	Consistent  bool          `json:"consistent"`
	Problems    []string      `json:"problems,omitempty"`
}

// Reconcile checks snap against the balances readers report for the pool.
// A balance above the reserve is a surplus (tokens sent to the pool without
// a deposit) and is still consistent; a balance below it is not.
func Reconcile(ctx context.Context, snap model.PoolSnapshot, readers []token.BalanceReader, logger *zap.Logger) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !common.IsHexAddress(snap.Address) {
		return Report{}, fmt.Errorf("invalid pool address: %s", snap.Address)
	}
	poolAddress := common.HexToAddress(snap.Address)

	reserves := map[string]string{
		strings.ToLower(snap.TokenA): snap.ReserveA,
		strings.ToLower(snap.TokenB): snap.ReserveB,
	}
	report := Report{
		PoolAddress: snap.Address,
		Sequence:    snap.Sequence,
		Consistent:  true,
	}

	for _, reader := range readers {
		key := strings.ToLower(reader.Address().Hex())
		reserveText, ok := reserves[key]
		if !ok {
			return Report{}, fmt.Errorf("token %s is not part of pool %s", reader.Address().Hex(), snap.Address)
		}
		reserve, err := parseAmount(reserveText)
		if err != nil {
			return Report{}, fmt.Errorf("parse reserve of %s: %w", key, err)
		}
		balance, err := reader.BalanceOf(ctx, poolAddress)
		if err != nil {
			return Report{}, fmt.Errorf("balance of %s: %w", key, err)
		}

		entry := TokenReport{
			Token:   reader.Address().Hex(),
			Reserve: reserve.Dec(),
			Balance: balance.Dec(),
		}
		switch {
		case balance.Eq(reserve):
			entry.Status = StatusOK
			entry.Difference = "0"
		case balance.Gt(reserve):
			entry.Status = StatusSurplus
			entry.Difference = new(uint256.Int).Sub(balance, reserve).Dec()
		default:
			entry.Status = StatusDeficit
			entry.Difference = new(uint256.Int).Sub(reserve, balance).Dec()
			report.Consistent = false
			report.Problems = append(report.Problems, fmt.Sprintf("reserve of %s exceeds balance by %s", entry.Token, entry.Difference))
		}
		report.Tokens = append(report.Tokens, entry)
		logger.Debug("reserve reconciled", zap.String("token", entry.Token), zap.String("status", entry.Status), zap.String("difference", entry.Difference))
	}

	if err := checkShares(snap); err != nil {
		report.Consistent = false
		report.Problems = append(report.Problems, err.Error())
	} else {
		report.SharesOK = true
	}
	return report, nil
}

// Err returns ErrInconsistent with the report's problems, or nil.
func (r Report) Err() error {
	if r.Consistent {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(r.Problems, "; "))
}

func checkShares(snap model.PoolSnapshot) error {
	total, err := parseAmount(snap.TotalShares)
	if err != nil {
		return fmt.Errorf("parse total shares: %w", err)
	}
	sum := new(uint256.Int)
	for holder, value := range snap.Shares {
		amount, err := parseAmount(value)
		if err != nil {
			return fmt.Errorf("parse shares of %s: %w", holder, err)
		}
		next, overflow := new(uint256.Int).AddOverflow(sum, amount)
		if overflow {
			return fmt.Errorf("share sum overflows")
		}
		sum = next
	}
	if !sum.Eq(total) {
		return fmt.Errorf("total shares %s but holders sum to %s", total.Dec(), sum.Dec())
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(value)
}
