package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is a notification emitted after a successful mutation.
type Event interface {
	EventName() string
}

// Emitter receives events in mutation order. Emit is called while the pool
// write lock is held and must not call back into the pool.
type Emitter interface {
	Emit(seq uint64, event Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(uint64, Event) {}

type LiquidityAdded struct {
	Provider     common.Address
	AmountA      *uint256.Int
	AmountB      *uint256.Int
	SharesMinted *uint256.Int
}

func (LiquidityAdded) EventName() string { return "LiquidityAdded" }

type LiquidityRemoved struct {
	Provider     common.Address
	AmountA      *uint256.Int
	AmountB      *uint256.Int
	SharesBurned *uint256.Int
}

func (LiquidityRemoved) EventName() string { return "LiquidityRemoved" }

type Swapped struct {
	Trader    common.Address
	TokenIn   common.Address
	AmountIn  *uint256.Int
	TokenOut  common.Address
	AmountOut *uint256.Int
}

func (Swapped) EventName() string { return "Swapped" }

type Paused struct {
	Account common.Address
}

func (Paused) EventName() string { return "Paused" }

type Unpaused struct {
	Account common.Address
}

func (Unpaused) EventName() string { return "Unpaused" }

// MultiEmitter forwards every event to each emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(seq uint64, event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(seq, event)
		}
	}
}
