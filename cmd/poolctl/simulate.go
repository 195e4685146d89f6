package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/config"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/recorder"
	"liquidityPool/internal/token"
)

// defaultSwapWindow is the deadline given to swap steps that set none.
const defaultSwapWindow = 5 * time.Minute

// scriptStep is one line of a simulation script.
type scriptStep struct {
	Op       string `json:"op"`
	Caller   string `json:"caller"`
	Token    string `json:"token"`
	Spender  string `json:"spender"`
	Amount   string `json:"amount"`
	AmountA  string `json:"amount_a"`
	AmountB  string `json:"amount_b"`
	Shares   string `json:"shares"`
	MinOut   string `json:"min_amount_out"`
	Deadline uint64 `json:"deadline"`
	Seconds  int64  `json:"seconds"`
}

// stepResult is written to the results file for every step.
type stepResult struct {
	Step        int               `json:"step"`
	Op          string            `json:"op"`
	OK          bool              `json:"ok"`
	Error       string            `json:"error,omitempty"`
	Output      map[string]string `json:"output,omitempty"`
	ReserveA    string            `json:"reserve_a"`
	ReserveB    string            `json:"reserve_b"`
	TotalShares string            `json:"total_shares"`
	Paused      bool              `json:"paused"`
	Sequence    uint64            `json:"sequence"`
	At          int64             `json:"at"`
}

// simClock is a settable clock shared by the pool and the recorder.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}
	if cfg.Results == "" {
		return fmt.Errorf("results path is required")
	}
	seeds, err := config.ParseMintSeeds(cfg.Pool.Mint)
	if err != nil {
		return err
	}
	poolAddress, err := config.ParseAddress(cfg.Pool.PoolAddress)
	if err != nil {
		return err
	}
	start, err := config.ParseTimestamp(cfg.Start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	if start.IsZero() {
		start = time.Now().UTC()
	}
	clock := &simClock{now: start}

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
		PoolAddress:  poolAddress,
		MaxRetries:   cfg.Persist.MaxRetries,
		RetryBackoff: cfg.Persist.RetryBackoff,
		Now:          clock.Now,
	}, sink, snapshots, snapshotFn, logger)
	if err != nil {
		return err
	}

	rt, err = newPoolRuntime(cfg.Pool, rec, clock.Now, logger)
	if err != nil {
		return err
	}
	if err := rt.loadOrSeed(ctx, snapshots, seeds, logger); err != nil {
		return err
	}

	scriptFile, err := os.Open(cfg.Script)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer scriptFile.Close()

	results, err := newJSONLWriter(cfg.Results, false)
	if err != nil {
		return err
	}
	defer results.Close()

	logger.Info("simulate start",
		zap.String("script", cfg.Script),
		zap.String("results", cfg.Results),
		zap.String("out", cfg.Persist.Out),
		zap.Time("start", start),
	)

	sim := &simulation{rt: rt, clock: clock, results: results, failFast: cfg.FailFast, logger: logger}
	runErr := sim.run(ctx, scriptFile)

	if err := rec.Flush(ctx); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if err := rt.pool.CheckInvariants(); err != nil {
		return err
	}

	reserveA, reserveB := rt.pool.Reserves()
	logger.Info("simulate complete",
		zap.Int("steps", sim.steps),
		zap.Int("failed", sim.failed),
		zap.Uint64("sequence", rt.pool.Sequence()),
		zap.String("reserve_a", reserveA.Dec()),
		zap.String("reserve_b", reserveB.Dec()),
		zap.Int("dropped", rec.Dropped()),
	)
	return nil
}

type simulation struct {
	rt       *poolRuntime
	clock    *simClock
	results  *jsonlWriter
	failFast bool
	logger   *zap.Logger

	steps  int
	failed int
}

func (s *simulation) run(ctx context.Context, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.steps++

		var step scriptStep
		var output map[string]string
		err := json.Unmarshal(line, &step)
		if err != nil {
			err = fmt.Errorf("parse step: %w", err)
		} else {
			output, err = s.apply(ctx, step)
		}

		result := s.result(step, output, err)
		if writeErr := s.results.Write(result); writeErr != nil {
			return writeErr
		}
		if err != nil {
			s.failed++
			s.logger.Debug("step failed", zap.Int("step", s.steps), zap.String("op", step.Op), zap.Error(err))
			if s.failFast {
				return fmt.Errorf("step %d (%s): %w", s.steps, step.Op, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan script: %w", err)
	}
	return nil
}

func (s *simulation) result(step scriptStep, output map[string]string, err error) stepResult {
	reserveA, reserveB := s.rt.pool.Reserves()
	result := stepResult{
		Step:        s.steps,
		Op:          step.Op,
		OK:          err == nil,
		Output:      output,
		ReserveA:    reserveA.Dec(),
		ReserveB:    reserveB.Dec(),
		TotalShares: s.rt.pool.TotalShares().Dec(),
		Paused:      s.rt.pool.IsPaused(),
		Sequence:    s.rt.pool.Sequence(),
		At:          s.clock.Now().Unix(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (s *simulation) apply(ctx context.Context, step scriptStep) (map[string]string, error) {
	p := s.rt.pool
	switch strings.ToLower(step.Op) {
	case "advance":
		if step.Seconds < 0 {
			return nil, fmt.Errorf("advance: negative seconds")
		}
		s.clock.Advance(time.Duration(step.Seconds) * time.Second)
		return nil, nil

	case "approve":
		tok, err := s.memoryToken(step.Token)
		if err != nil {
			return nil, err
		}
		caller, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		spender := p.Address()
		if step.Spender != "" {
			if spender, err = config.ParseAddress(step.Spender); err != nil {
				return nil, err
			}
		}
		amount, err := amountOrMax(step.Amount)
		if err != nil {
			return nil, err
		}
		if err := tok.Approve(ctx, caller, spender, amount); err != nil {
			return nil, err
		}
		return map[string]string{"allowance": amount.Dec()}, nil

	case "add":
		caller, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		amountA, err := config.ParseAmount(step.AmountA)
		if err != nil {
			return nil, err
		}
		amountB, err := config.ParseAmount(step.AmountB)
		if err != nil {
			return nil, err
		}
		usedA, usedB, minted, err := p.AddLiquidity(ctx, caller, amountA, amountB)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount_a": usedA.Dec(), "amount_b": usedB.Dec(), "shares_minted": minted.Dec()}, nil

	case "remove":
		caller, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		shares, err := config.ParseAmount(step.Shares)
		if err != nil {
			return nil, err
		}
		amountA, amountB, err := p.RemoveLiquidity(ctx, caller, shares)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount_a": amountA.Dec(), "amount_b": amountB.Dec()}, nil

	case "swap":
		caller, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		tokenIn, err := config.ParseAddress(step.Token)
		if err != nil {
			return nil, err
		}
		amountIn, err := config.ParseAmount(step.Amount)
		if err != nil {
			return nil, err
		}
		var minOut *uint256.Int
		if step.MinOut != "" {
			if minOut, err = config.ParseAmount(step.MinOut); err != nil {
				return nil, err
			}
		}
		deadline := step.Deadline
		if deadline == 0 {
			deadline = uint64(s.clock.Now().Add(defaultSwapWindow).Unix())
		}
		amountOut, err := p.Swap(ctx, caller, tokenIn, amountIn, minOut, deadline)
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount_out": amountOut.Dec()}, nil

	case "pause", "unpause":
		caller, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(step.Op, "pause") {
			return nil, p.Pause(caller)
		}
		return nil, p.Unpause(caller)

	case "mint":
		tok, err := s.memoryToken(step.Token)
		if err != nil {
			return nil, err
		}
		holder, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		amount, err := config.ParseAmount(step.Amount)
		if err != nil {
			return nil, err
		}
		if err := tok.Mint(holder, amount); err != nil {
			return nil, err
		}
		return map[string]string{"total_supply": tok.TotalSupply().Dec()}, nil

	case "transfer":
		tok, err := s.memoryToken(step.Token)
		if err != nil {
			return nil, err
		}
		sender, err := config.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		to, err := config.ParseAddress(step.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := config.ParseAmount(step.Amount)
		if err != nil {
			return nil, err
		}
		return nil, tok.Transfer(ctx, sender, to, amount)

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

func (s *simulation) memoryToken(raw string) (*token.Memory, error) {
	address, err := config.ParseAddress(raw)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	for _, tok := range []*token.Memory{s.rt.tokenA, s.rt.tokenB} {
		if tok.Address() == address {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("token %s: %w", address.Hex(), pool.ErrInvalidToken)
}

// amountOrMax treats "max" and the empty string as an unlimited approval.
func amountOrMax(raw string) (*uint256.Int, error) {
	if raw == "" || strings.EqualFold(raw, "max") {
		return new(uint256.Int).SetAllOne(), nil
	}
	return config.ParseAmount(raw)
}
