package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPool/internal/audit"
	"liquidityPool/internal/config"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
	"liquidityPool/internal/token"
)

// poolRuntime is a pool together with the in-memory tokens holding its
// reserves.
type poolRuntime struct {
	pool   *pool.Pool
	tokenA *token.Memory
	tokenB *token.Memory
	now    func() time.Time
}

func newPoolRuntime(cfg config.PoolConfig, emitter pool.Emitter, now func() time.Time, logger *zap.Logger) (*poolRuntime, error) {
	poolAddress, err := config.ParseAddress(cfg.PoolAddress)
	if err != nil {
		return nil, fmt.Errorf("pool address: %w", err)
	}
	tokenAAddress, err := config.ParseAddress(cfg.TokenA)
	if err != nil {
		return nil, fmt.Errorf("token a: %w", err)
	}
	tokenBAddress, err := config.ParseAddress(cfg.TokenB)
	if err != nil {
		return nil, fmt.Errorf("token b: %w", err)
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	owner, err := config.ParseAddress(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if now == nil {
		now = time.Now
	}

	tokenA := token.NewMemory(tokenAAddress, cfg.SymbolA)
	tokenB := token.NewMemory(tokenBAddress, cfg.SymbolB)
	p, err := pool.New(pool.Config{
		Address: poolAddress,
		TokenA:  tokenA,
		TokenB:  tokenB,
		Owner:   owner,
		Emitter: emitter,
		Now:     now,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &poolRuntime{pool: p, tokenA: tokenA, tokenB: tokenB, now: now}, nil
}

func (r *poolRuntime) tokens() []token.Token {
	return []token.Token{r.tokenA, r.tokenB}
}

func (r *poolRuntime) key() string {
	return strings.ToLower(r.pool.Address().Hex())
}

// seed mints every seed amount on both tokens.
func (r *poolRuntime) seed(seeds []config.MintSeed) error {
	for _, seed := range seeds {
		for _, tok := range []*token.Memory{r.tokenA, r.tokenB} {
			if err := tok.Mint(seed.Holder, seed.Amount); err != nil {
				return fmt.Errorf("mint %s to %s: %w", tok.Symbol(), seed.Holder.Hex(), err)
			}
		}
	}
	return nil
}

func (r *poolRuntime) stateSnapshot() model.StateSnapshot {
	var tokens []model.TokenSnapshot
	poolSnap := r.pool.SnapshotWith(func() {
		tokens = []model.TokenSnapshot{r.tokenA.Snapshot(), r.tokenB.Snapshot()}
	})
	return model.StateSnapshot{
		Pool:      poolSnap,
		Tokens:    tokens,
		UpdatedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
}

// restore loads snap into scratch token ledgers first, reconciles the pool
// reserves against them and only then replaces the live state.
func (r *poolRuntime) restore(ctx context.Context, snap model.StateSnapshot, logger *zap.Logger) error {
	live := []*token.Memory{r.tokenA, r.tokenB}
	staged := make(map[common.Address]model.TokenSnapshot, len(live))
	var readers []token.BalanceReader
	for _, tokSnap := range snap.Tokens {
		if !common.IsHexAddress(tokSnap.Address) {
			return fmt.Errorf("restore token: invalid address %q", tokSnap.Address)
		}
		address := common.HexToAddress(tokSnap.Address)
		var tok *token.Memory
		for _, candidate := range live {
			if candidate.Address() == address {
				tok = candidate
			}
		}
		if tok == nil {
			return fmt.Errorf("restore token: %s is not a pool token", tokSnap.Address)
		}
		if _, dup := staged[address]; dup {
			return fmt.Errorf("restore token: %s appears twice", tokSnap.Address)
		}
		scratch := token.NewMemory(address, tok.Symbol())
		if err := scratch.Restore(tokSnap); err != nil {
			return err
		}
		staged[address] = tokSnap
		readers = append(readers, scratch)
	}
	if len(staged) != len(live) {
		return fmt.Errorf("restore tokens: snapshot holds %d of %d token ledgers", len(staged), len(live))
	}

	report, err := audit.Reconcile(ctx, snap.Pool, readers, logger)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	if err := r.pool.Restore(snap.Pool); err != nil {
		return fmt.Errorf("restore pool: %w", err)
	}
	for _, tok := range live {
		if err := tok.Restore(staged[tok.Address()]); err != nil {
			return err
		}
	}
	return nil
}

// loadOrSeed restores the runtime from store when it holds a snapshot for
// this pool and mints the seeds otherwise.
func (r *poolRuntime) loadOrSeed(ctx context.Context, store storage.SnapshotStore, seeds []config.MintSeed, logger *zap.Logger) error {
	if store != nil {
		snap, ok, err := store.LoadSnapshot(ctx, r.key())
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			if err := r.restore(ctx, snap, logger); err != nil {
				return err
			}
			logger.Info("state restored",
				zap.Uint64("sequence", snap.Pool.Sequence),
				zap.String("reserve_a", snap.Pool.ReserveA),
				zap.String("reserve_b", snap.Pool.ReserveB),
				zap.Bool("paused", snap.Pool.Paused),
			)
			return nil
		}
	}
	if err := r.seed(seeds); err != nil {
		return err
	}
	logger.Info("state seeded", zap.Int("holders", len(seeds)))
	return nil
}

// openStores picks Postgres when a DSN is configured and the local files
// otherwise. The returned close func is never nil.
func openStores(ctx context.Context, cfg config.PersistConfig) (storage.LogSink, storage.SnapshotStore, func(), error) {
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, nil, err
		}
		return store, store, store.Close, nil
	}

	if cfg.Out == "" {
		return nil, nil, nil, fmt.Errorf("output path is required")
	}
	var snapshots storage.SnapshotStore
	if cfg.Snapshot != "" {
		snapshots = storage.NewFileSnapshotStore(cfg.Snapshot)
	}
	events := storage.NewJsonlStorage(cfg.Out)
	return events, snapshots, func() { events.Close() }, nil
}
