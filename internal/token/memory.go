package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
)

// Op identifies a mutating token call for failure hooks.
type Op string

const (
	OpTransfer     Op = "transfer"
	OpTransferFrom Op = "transferFrom"
	OpApprove      Op = "approve"
)

// FailHook lets callers reject a call before it is applied.
type FailHook func(op Op, from, to common.Address, amount *uint256.Int) error

// Memory is an in-process ERC-20 ledger.
type Memory struct {
	address common.Address
	symbol  string

	mu          sync.RWMutex
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	failHook    FailHook
}

func NewMemory(address common.Address, symbol string) *Memory {
	return &Memory{
		address:     address,
		symbol:      symbol,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (m *Memory) Address() common.Address { return m.address }

func (m *Memory) Symbol() string { return m.symbol }

// SetFailHook installs (or clears, with nil) a hook consulted before every
// transfer, transferFrom and approve.
func (m *Memory) SetFailHook(hook FailHook) {
	m.mu.Lock()
	m.failHook = hook
	m.mu.Unlock()
}

// Mint creates new tokens for to.
func (m *Memory) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("mint: %w", ErrZeroAddress)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(m.totalSupply, amount)
	if overflow {
		return fmt.Errorf("mint: total supply overflow")
	}
	m.totalSupply = supply
	m.balances[to] = new(uint256.Int).Add(m.balanceLocked(to), amount)
	return nil
}

func (m *Memory) TotalSupply() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalSupply.Clone()
}

func (m *Memory) BalanceOf(_ context.Context, holder common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(holder).Clone(), nil
}

func (m *Memory) Allowance(_ context.Context, owner, spender common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowanceLocked(owner, spender).Clone(), nil
}

func (m *Memory) Approve(_ context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("approve: %w", ErrZeroAddress)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkHook(OpApprove, owner, spender, amount); err != nil {
		return err
	}
	spenders := m.allowances[owner]
	if spenders == nil {
		spenders = make(map[common.Address]*uint256.Int)
		m.allowances[owner] = spenders
	}
	spenders[spender] = amount.Clone()
	return nil
}

func (m *Memory) Transfer(_ context.Context, sender, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkHook(OpTransfer, sender, to, amount); err != nil {
		return err
	}
	return m.moveLocked(sender, to, amount)
}

func (m *Memory) TransferFrom(_ context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkHook(OpTransferFrom, from, to, amount); err != nil {
		return err
	}
	allowed := m.allowanceLocked(from, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("transferFrom %s: %w", m.symbol, ErrInsufficientAllowance)
	}
	if err := m.moveLocked(from, to, amount); err != nil {
		return err
	}
	m.allowances[from][spender] = new(uint256.Int).Sub(allowed, amount)
	return nil
}

// Snapshot returns a copy of the ledger in persisted form.
func (m *Memory) Snapshot() model.TokenSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := model.TokenSnapshot{
		Address:     m.address.Hex(),
		Symbol:      m.symbol,
		TotalSupply: m.totalSupply.Dec(),
		Balances:    make(map[string]string, len(m.balances)),
		Allowances:  make(map[string]map[string]string, len(m.allowances)),
	}
	for holder, bal := range m.balances {
		if bal.IsZero() {
			continue
		}
		snap.Balances[holder.Hex()] = bal.Dec()
	}
	for owner, spenders := range m.allowances {
		out := make(map[string]string, len(spenders))
		for spender, amount := range spenders {
			if amount.IsZero() {
				continue
			}
			out[spender.Hex()] = amount.Dec()
		}
		if len(out) > 0 {
			snap.Allowances[owner.Hex()] = out
		}
	}
	return snap
}

// Restore replaces the ledger contents with snap.
func (m *Memory) Restore(snap model.TokenSnapshot) error {
	if !common.IsHexAddress(snap.Address) || common.HexToAddress(snap.Address) != m.address {
		return fmt.Errorf("restore %s: snapshot address %q does not match", m.symbol, snap.Address)
	}

	supply, err := parseAmount(snap.TotalSupply)
	if err != nil {
		return fmt.Errorf("restore total supply: %w", err)
	}
	balances := make(map[common.Address]*uint256.Int, len(snap.Balances))
	sum := new(uint256.Int)
	for holder, value := range snap.Balances {
		addr, amount, err := parseEntry(holder, value)
		if err != nil {
			return fmt.Errorf("restore balance: %w", err)
		}
		balances[addr] = amount
		var overflow bool
		if sum, overflow = sum.AddOverflow(sum, amount); overflow {
			return fmt.Errorf("restore balance: sum overflow")
		}
	}
	if !sum.Eq(supply) {
		return fmt.Errorf("restore %s: balances sum %s != total supply %s", m.symbol, sum.Dec(), supply.Dec())
	}
	allowances := make(map[common.Address]map[common.Address]*uint256.Int, len(snap.Allowances))
	for owner, spenders := range snap.Allowances {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("restore allowance: invalid owner %q", owner)
		}
		out := make(map[common.Address]*uint256.Int, len(spenders))
		for spender, value := range spenders {
			addr, amount, err := parseEntry(spender, value)
			if err != nil {
				return fmt.Errorf("restore allowance: %w", err)
			}
			out[addr] = amount
		}
		allowances[common.HexToAddress(owner)] = out
	}

	m.mu.Lock()
	m.totalSupply = supply
	m.balances = balances
	m.allowances = allowances
	m.mu.Unlock()
	return nil
}

func (m *Memory) checkHook(op Op, from, to common.Address, amount *uint256.Int) error {
	if m.failHook == nil {
		return nil
	}
	if err := m.failHook(op, from, to, amount); err != nil {
		return fmt.Errorf("%s %s: %w", op, m.symbol, err)
	}
	return nil
}

func (m *Memory) moveLocked(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("transfer %s: %w", m.symbol, ErrZeroAddress)
	}
	balance := m.balanceLocked(from)
	if balance.Lt(amount) {
		return fmt.Errorf("transfer %s: %w", m.symbol, ErrInsufficientBalance)
	}
	m.balances[from] = new(uint256.Int).Sub(balance, amount)
	m.balances[to] = new(uint256.Int).Add(m.balanceLocked(to), amount)
	return nil
}

func (m *Memory) balanceLocked(holder common.Address) *uint256.Int {
	if bal, ok := m.balances[holder]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (m *Memory) allowanceLocked(owner, spender common.Address) *uint256.Int {
	if spenders, ok := m.allowances[owner]; ok {
		if amount, ok := spenders[spender]; ok {
			return amount
		}
	}
	return new(uint256.Int)
}

func parseEntry(address, value string) (common.Address, *uint256.Int, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, nil, fmt.Errorf("invalid address %q", address)
	}
	amount, err := parseAmount(value)
	if err != nil {
		return common.Address{}, nil, err
	}
	return common.HexToAddress(address), amount, nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}
