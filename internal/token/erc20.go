package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const erc20ReadABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "address", "name": "owner", "type": "address"}, {"internalType": "address", "name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ReadABI     abi.ABI
	erc20ReadABIOnce sync.Once
	erc20ReadABIErr  error
)

func getERC20ReadABI() (abi.ABI, error) {
	erc20ReadABIOnce.Do(func() {
		erc20ReadABI, erc20ReadABIErr = abi.JSON(strings.NewReader(erc20ReadABIJSON))
	})
	return erc20ReadABI, erc20ReadABIErr
}

// ContractCaller performs eth_call against a node.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20 reads balances and allowances of a deployed token. It cannot sign
// transactions, so all mutating calls fail with ErrReadOnly.
type ERC20 struct {
	address common.Address
	caller  ContractCaller
	block   *big.Int
}

// NewERC20 binds a deployed token. A nil block reads the latest state.
func NewERC20(address common.Address, caller ContractCaller, block *big.Int) *ERC20 {
	return &ERC20{address: address, caller: caller, block: block}
}

func (t *ERC20) Address() common.Address { return t.address }

func (t *ERC20) BalanceOf(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	return t.callUint256(ctx, "balanceOf", holder)
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error) {
	return t.callUint256(ctx, "allowance", owner, spender)
}

func (t *ERC20) Transfer(context.Context, common.Address, common.Address, *uint256.Int) error {
	return fmt.Errorf("transfer %s: %w", t.address.Hex(), ErrReadOnly)
}

func (t *ERC20) TransferFrom(context.Context, common.Address, common.Address, common.Address, *uint256.Int) error {
	return fmt.Errorf("transferFrom %s: %w", t.address.Hex(), ErrReadOnly)
}

func (t *ERC20) Approve(context.Context, common.Address, common.Address, *uint256.Int) error {
	return fmt.Errorf("approve %s: %w", t.address.Hex(), ErrReadOnly)
}

func (t *ERC20) callUint256(ctx context.Context, method string, args ...interface{}) (*uint256.Int, error) {
	if t.caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	tokenABI, err := getERC20ReadABI()
	if err != nil {
		return nil, err
	}

	data, err := tokenABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := t.address
	resp, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, t.block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := tokenABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%s value overflows uint256", method)
	}
	return out, nil
}
