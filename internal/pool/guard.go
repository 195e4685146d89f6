package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Pause blocks liquidity and swap operations. Only the owner may call it.
func (p *Pool) Pause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return ErrUnauthorizedCaller
	}
	if p.paused {
		return ErrPoolPaused
	}
	p.paused = true
	p.sequence++
	p.emitter.Emit(p.sequence, Paused{Account: caller})
	p.logger.Info("pool paused", zap.String("account", caller.Hex()))
	return nil
}

// Unpause lifts a previous Pause. Only the owner may call it.
func (p *Pool) Unpause(caller common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return ErrUnauthorizedCaller
	}
	if !p.paused {
		return ErrPoolNotPaused
	}
	p.paused = false
	p.sequence++
	p.emitter.Emit(p.sequence, Unpaused{Account: caller})
	p.logger.Info("pool unpaused", zap.String("account", caller.Hex()))
	return nil
}
