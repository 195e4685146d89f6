package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type stubCaller struct {
	balances map[common.Address]*big.Int
	lastTo   common.Address
}

func (s *stubCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	tokenABI, err := getERC20ReadABI()
	if err != nil {
		return nil, err
	}
	s.lastTo = *msg.To
	method, err := tokenABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		holder := args[0].(common.Address)
		bal := s.balances[holder]
		if bal == nil {
			bal = big.NewInt(0)
		}
		return method.Outputs.Pack(bal)
	default:
		return method.Outputs.Pack(big.NewInt(7))
	}
}

func TestERC20BalanceOf(t *testing.T) {
	tokenAddr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	caller := &stubCaller{balances: map[common.Address]*big.Int{alice: big.NewInt(123456)}}
	tok := NewERC20(tokenAddr, caller, nil)

	bal, err := tok.BalanceOf(context.Background(), alice)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if bal.Uint64() != 123456 {
		t.Fatalf("balance mismatch: %s", bal.Dec())
	}
	if caller.lastTo != tokenAddr {
		t.Fatalf("call sent to %s", caller.lastTo.Hex())
	}

	allowance, err := tok.Allowance(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Uint64() != 7 {
		t.Fatalf("allowance mismatch: %s", allowance.Dec())
	}
}

func TestERC20IsReadOnly(t *testing.T) {
	tok := NewERC20(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), &stubCaller{}, nil)
	if err := tok.Transfer(context.Background(), alice, bob, uint256.NewInt(1)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := tok.Approve(context.Background(), alice, bob, uint256.NewInt(1)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}
