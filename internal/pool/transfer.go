package pool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/token"
)

type transferKind int

const (
	pullKind transferKind = iota
	pushKind
)

type transfer struct {
	kind   transferKind
	token  token.Token
	holder common.Address
	amount *uint256.Int
}

// transferBatch journals the token moves of one operation so they can be
// undone in reverse order when a later move fails.
type transferBatch struct {
	ctx    context.Context
	pool   common.Address
	logger *zap.Logger
	done   []transfer
}

func (p *Pool) newTransferBatch(ctx context.Context) *transferBatch {
	return &transferBatch{ctx: ctx, pool: p.address, logger: p.logger}
}

// pull moves amount from holder into the pool using the pool's allowance.
func (b *transferBatch) pull(tok token.Token, holder common.Address, amount *uint256.Int) error {
	if err := tok.TransferFrom(b.ctx, b.pool, holder, b.pool, amount); err != nil {
		return fmt.Errorf("%w: pull %s of %s from %s: %w", ErrTokenTransferFailed, amount.Dec(), tok.Address().Hex(), holder.Hex(), err)
	}
	b.done = append(b.done, transfer{kind: pullKind, token: tok, holder: holder, amount: amount})
	return nil
}

// push moves amount from the pool to holder.
func (b *transferBatch) push(tok token.Token, holder common.Address, amount *uint256.Int) error {
	if err := tok.Transfer(b.ctx, b.pool, holder, amount); err != nil {
		return fmt.Errorf("%w: push %s of %s to %s: %w", ErrTokenTransferFailed, amount.Dec(), tok.Address().Hex(), holder.Hex(), err)
	}
	b.done = append(b.done, transfer{kind: pushKind, token: tok, holder: holder, amount: amount})
	return nil
}

// rollback reverses every completed move in reverse order and returns the
// moves that could not be undone. The caller's context may already be
// cancelled, so compensation runs without it.
func (b *transferBatch) rollback() []transfer {
	ctx := context.WithoutCancel(b.ctx)
	var stuck []transfer
	for i := len(b.done) - 1; i >= 0; i-- {
		t := b.done[i]
		var err error
		switch t.kind {
		case pullKind:
			err = t.token.Transfer(ctx, b.pool, t.holder, t.amount)
		case pushKind:
			// Needs the holder's allowance to the pool, which may be gone.
			err = t.token.TransferFrom(ctx, b.pool, t.holder, b.pool, t.amount)
		}
		if err != nil {
			b.logger.Error("compensating transfer failed",
				zap.String("token", t.token.Address().Hex()),
				zap.String("holder", t.holder.Hex()),
				zap.String("amount", t.amount.Dec()),
				zap.Error(err),
			)
			stuck = append(stuck, t)
		}
	}
	b.done = nil
	return stuck
}

func (t transfer) String() string {
	verb := "pulled from"
	if t.kind == pushKind {
		verb = "pushed to"
	}
	return fmt.Sprintf("%s of %s %s %s", t.amount.Dec(), t.token.Address().Hex(), verb, t.holder.Hex())
}

// failClosed pauses the pool after a compensation failure so nothing trades
// against books that no longer match the tokens. Must hold the write lock.
func (p *Pool) failClosed(stuck []transfer, cause error) error {
	moved := make([]string, 0, len(stuck))
	for _, t := range stuck {
		moved = append(moved, t.String())
	}
	if !p.paused {
		p.paused = true
		p.sequence++
		p.emitter.Emit(p.sequence, Paused{Account: p.address})
	}
	p.logger.Error("pool paused after failed compensation",
		zap.Strings("stuck", moved),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: %s: %w", ErrCompensationFailed, strings.Join(moved, "; "), cause)
}
