package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPool/internal/api"
	"liquidityPool/internal/config"
	"liquidityPool/internal/metrics"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/recorder"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	seeds, err := config.ParseMintSeeds(cfg.Pool.Mint)
	if err != nil {
		return err
	}
	apiKeys, err := config.ParseAPIKeys(cfg.APIKeys)
	if err != nil {
		return err
	}
	poolAddress, err := config.ParseAddress(cfg.Pool.PoolAddress)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, snapshots, closeStores, err := openStores(ctx, cfg.Persist)
	if err != nil {
		return err
	}
	defer closeStores()

	var rt *poolRuntime
	var snapshotFn recorder.SnapshotFunc
	if snapshots != nil {
		snapshotFn = func() model.StateSnapshot { return rt.stateSnapshot() }
	}
	rec, err := recorder.New(recorder.Config{
		PoolAddress:     poolAddress,
		FlushInterval:   cfg.FlushInterval,
		MaxRetries:      cfg.Persist.MaxRetries,
		RetryBackoff:    cfg.Persist.RetryBackoff,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, sink, snapshots, snapshotFn, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rt, err = newPoolRuntime(cfg.Pool, pool.MultiEmitter{rec, m}, nil, logger)
	if err != nil {
		return err
	}
	if err := rt.loadOrSeed(ctx, snapshots, seeds, logger); err != nil {
		return err
	}
	m.WatchPool(reg, rt.pool)

	server, err := api.NewServer(api.Config{
		RateLimit:            cfg.RateLimit,
		RateBurst:            cfg.RateBurst,
		RequestTimeout:       cfg.RequestTimeout,
		ShutdownTimeout:      cfg.ShutdownTimeout,
		APIKeys:              apiKeys,
		AllowUnauthenticated: cfg.AllowUnauthenticated,
	}, rt.pool, rt.tokens(), m, reg, logger)
	if err != nil {
		return err
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.Int("api_keys", len(apiKeys)),
		zap.Bool("unauthenticated", cfg.AllowUnauthenticated),
		zap.String("pool", rt.key()),
		zap.String("owner", rt.pool.Owner().Hex()),
		zap.String("out", cfg.Persist.Out),
		zap.String("snapshot", cfg.Persist.Snapshot),
		zap.Bool("postgres", cfg.Persist.PGDSN != ""),
		zap.Uint64("sequence", rt.pool.Sequence()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.Listen)
	})
	g.Go(func() error {
		return rec.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("serve stopped", zap.Uint64("sequence", rt.pool.Sequence()), zap.Int("dropped", rec.Dropped()))
	return nil
}
