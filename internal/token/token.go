// Package token defines the ERC-20 capability set the pool depends on and
// provides an in-memory ledger and a chain-backed reader implementing it.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrZeroAddress           = errors.New("zero address")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrReadOnly              = errors.New("token is read-only")
)

// Token is the collaborator capability set. Every call names the acting
// account explicitly: sender for Transfer, spender for TransferFrom and owner
// for Approve.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, sender, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error)
}

// BalanceReader is the read-only subset used for reconciliation.
type BalanceReader interface {
	Address() common.Address
	BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error)
}
