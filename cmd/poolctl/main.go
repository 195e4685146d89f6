package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Constant-product liquidity pool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool over HTTP",
		RunE:  runServe,
	}

	addPoolFlags(serveCmd)
	addPersistFlags(serveCmd)
	serveCmd.Flags().String("out", "./data/pool_events.jsonl", "event log JSONL path")
	serveCmd.Flags().String("snapshot", "./data/pool_state.json", "state snapshot path")
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().StringSlice("api-key", nil, "API keys for mutating routes (comma-separated holder=key)")
	serveCmd.Flags().Bool("allow-unauthenticated", false, "trust the request body caller on mutating routes (development only)")
	serveCmd.Flags().Float64("rate-limit", 20, "requests per second per client (0 disables)")
	serveCmd.Flags().Int("rate-burst", 40, "rate limit burst")
	serveCmd.Flags().Duration("request-timeout", 10*time.Second, "per-request timeout")
	serveCmd.Flags().Duration("flush-interval", time.Second, "event log flush interval")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a JSONL script of pool operations",
		RunE:  runSimulate,
	}

	addPoolFlags(simulateCmd)
	addPersistFlags(simulateCmd)
	simulateCmd.Flags().String("script", "", "input script JSONL")
	simulateCmd.Flags().String("out", "./data/sim_events.jsonl", "event log JSONL path")
	simulateCmd.Flags().String("snapshot", "", "optional state snapshot path")
	simulateCmd.Flags().String("results", "./data/sim_results.jsonl", "step results JSONL path")
	simulateCmd.Flags().String("start", "", "simulated start time (unix seconds or RFC3339), default now")
	simulateCmd.Flags().Bool("fail-fast", false, "stop at the first failed step")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against given reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "reserve of the input token")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output token")
	quoteCmd.Flags().String("amount-in", "", "input amount")

	root.AddCommand(quoteCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Reconcile a stored snapshot with token balances",
		RunE:  runAudit,
	}

	auditCmd.Flags().String("rpc", "", "RPC URL; when set balances are read from deployed tokens")
	auditCmd.Flags().Uint64("block", 0, "block to read balances at, 0 means latest")
	auditCmd.Flags().String("snapshot", "./data/pool_state.json", "state snapshot path")
	auditCmd.Flags().String("pg-dsn", "", "Postgres DSN; overrides the snapshot file")
	auditCmd.Flags().String("pool-address", "0x00000000000000000000000000000000000000f0", "pool address")
	auditCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(auditCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode pool event logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input event log JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input typed events JSONL")
	aggregateCmd.Flags().String("out", "./data/pool_windows.jsonl", "output window metrics JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the output file")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for window writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().Uint64("recompute-from", 0, "recompute from this event sequence")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool-address", "0x00000000000000000000000000000000000000f0", "pool address")
	cmd.Flags().String("token-a", "0x000000000000000000000000000000000000a000", "token A address")
	cmd.Flags().String("token-b", "0x000000000000000000000000000000000000b000", "token B address")
	cmd.Flags().String("symbol-a", "TKA", "token A symbol")
	cmd.Flags().String("symbol-b", "TKB", "token B symbol")
	cmd.Flags().String("owner", "", "pool owner address")
	cmd.Flags().StringSlice("mint", nil, "initial balances on both tokens (comma-separated holder=amount)")
}

func addPersistFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; replaces the JSONL and snapshot files")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
