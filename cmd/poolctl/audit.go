package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/audit"
	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/storage/postgres"
	"liquidityPool/internal/token"
)

func runAudit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAudit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolAddress, err := config.ParseAddress(cfg.PoolAddress)
	if err != nil {
		return fmt.Errorf("pool address: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := loadAuditSnapshot(ctx, cfg, poolAddress)
	if err != nil {
		return err
	}

	var readers []token.BalanceReader
	if cfg.RPCURL != "" {
		chainClient, err := chain.Dial(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		defer chainClient.Close()

		chainID, err := chainClient.ChainID(ctx)
		if err != nil {
			return err
		}
		block, err := chainClient.BlockAt(ctx, cfg.Block)
		if err != nil {
			return err
		}
		logger.Info("audit against chain",
			zap.String("chain_id", chainID.String()),
			zap.Uint64("block", block.Number),
			zap.Uint64("block_time", block.Timestamp),
		)

		blockNumber := new(big.Int).SetUint64(block.Number)
		for _, raw := range []string{snap.Pool.TokenA, snap.Pool.TokenB} {
			address := common.HexToAddress(raw)
			deployed, err := chainClient.HasCode(ctx, address, blockNumber)
			if err != nil {
				return err
			}
			if !deployed {
				return fmt.Errorf("token %s has no code at block %d", address.Hex(), block.Number)
			}
			readers = append(readers, token.NewERC20(address, chainClient, blockNumber))
		}
	} else {
		readers, err = snapshotReaders(snap)
		if err != nil {
			return err
		}
	}

	report, err := audit.Reconcile(ctx, snap.Pool, readers, logger)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	logger.Info("audit complete",
		zap.Uint64("sequence", report.Sequence),
		zap.Bool("consistent", report.Consistent),
		zap.Int("problems", len(report.Problems)),
	)
	return report.Err()
}

func loadAuditSnapshot(ctx context.Context, cfg config.AuditConfig, poolAddress common.Address) (model.StateSnapshot, error) {
	var store storage.SnapshotStore
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return model.StateSnapshot{}, err
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		if cfg.Snapshot == "" {
			return model.StateSnapshot{}, fmt.Errorf("snapshot path or pg dsn is required")
		}
		store = storage.NewFileSnapshotStore(cfg.Snapshot)
	}

	snap, ok, err := store.LoadSnapshot(ctx, strings.ToLower(poolAddress.Hex()))
	if err != nil {
		return model.StateSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return model.StateSnapshot{}, fmt.Errorf("no snapshot stored for pool %s", poolAddress.Hex())
	}
	return snap, nil
}

// snapshotReaders rebuilds the in-memory token ledgers stored with the pool.
func snapshotReaders(snap model.StateSnapshot) ([]token.BalanceReader, error) {
	if len(snap.Tokens) == 0 {
		return nil, fmt.Errorf("snapshot holds no token ledgers; use --rpc to read balances from chain")
	}
	readers := make([]token.BalanceReader, 0, len(snap.Tokens))
	for _, tokSnap := range snap.Tokens {
		if !common.IsHexAddress(tokSnap.Address) {
			return nil, fmt.Errorf("token snapshot address %q invalid", tokSnap.Address)
		}
		tok := token.NewMemory(common.HexToAddress(tokSnap.Address), tokSnap.Symbol)
		if err := tok.Restore(tokSnap); err != nil {
			return nil, err
		}
		readers = append(readers, tok)
	}
	return readers, nil
}
