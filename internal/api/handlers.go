package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"liquidityPool/internal/audit"
	"liquidityPool/internal/token"
)

type addLiquidityRequest struct {
	Caller  string `json:"caller"`
	AmountA string `json:"amount_a" binding:"required"`
	AmountB string `json:"amount_b" binding:"required"`
}

type removeLiquidityRequest struct {
	Caller string `json:"caller"`
	Shares string `json:"shares" binding:"required"`
}

type swapRequest struct {
	Caller       string `json:"caller"`
	TokenIn      string `json:"token_in" binding:"required"`
	AmountIn     string `json:"amount_in" binding:"required"`
	MinAmountOut string `json:"min_amount_out"`
	Deadline     uint64 `json:"deadline" binding:"required"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type approveRequest struct {
	Caller string `json:"caller"`
	// Spender defaults to the pool.
	Spender string `json:"spender"`
	Amount  string `json:"amount" binding:"required"`
}

func (s *Server) handlePool(c *gin.Context) {
	snap := s.pool.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"address":      snap.Address,
		"owner":        snap.Owner,
		"token_a":      snap.TokenA,
		"token_b":      snap.TokenB,
		"reserve_a":    snap.ReserveA,
		"reserve_b":    snap.ReserveB,
		"total_shares": snap.TotalShares,
		"holders":      len(snap.Shares),
		"paused":       snap.Paused,
		"sequence":     snap.Sequence,
	})
}

func (s *Server) handleReserves(c *gin.Context) {
	reserveA, reserveB := s.pool.Reserves()
	c.JSON(http.StatusOK, gin.H{
		"reserve_a": reserveA.Dec(),
		"reserve_b": reserveB.Dec(),
	})
}

func (s *Server) handleShares(c *gin.Context) {
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"holder": strings.ToLower(holder.Hex()),
		"shares": s.pool.SharesOf(holder).Dec(),
	})
}

func (s *Server) handleQuote(c *gin.Context) {
	tokenIn, err := parseAddress("token_in", c.Query("token_in"))
	if err != nil {
		writeError(c, err)
		return
	}
	amountIn, err := parseAmount("amount_in", c.Query("amount_in"))
	if err != nil {
		writeError(c, err)
		return
	}
	amountOut, err := s.pool.GetAmountOut(tokenIn, amountIn)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token_in":   strings.ToLower(tokenIn.Hex()),
		"amount_in":  amountIn.Dec(),
		"amount_out": amountOut.Dec(),
	})
}

func (s *Server) handleAddLiquidity(c *gin.Context) {
	var req addLiquidityRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	caller, err := resolveCaller(c, req.Caller)
	if err != nil {
		writeError(c, err)
		return
	}
	amountA, err := parseAmount("amount_a", req.AmountA)
	if err != nil {
		writeError(c, err)
		return
	}
	amountB, err := parseAmount("amount_b", req.AmountB)
	if err != nil {
		writeError(c, err)
		return
	}

	usedA, usedB, minted, err := s.pool.AddLiquidity(c.Request.Context(), caller, amountA, amountB)
	s.metrics.ObserveOperation("add_liquidity", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount_a":      usedA.Dec(),
		"amount_b":      usedB.Dec(),
		"shares_minted": minted.Dec(),
	})
}

func (s *Server) handleRemoveLiquidity(c *gin.Context) {
	var req removeLiquidityRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	caller, err := resolveCaller(c, req.Caller)
	if err != nil {
		writeError(c, err)
		return
	}
	shares, err := parseAmount("shares", req.Shares)
	if err != nil {
		writeError(c, err)
		return
	}

	amountA, amountB, err := s.pool.RemoveLiquidity(c.Request.Context(), caller, shares)
	s.metrics.ObserveOperation("remove_liquidity", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount_a":      amountA.Dec(),
		"amount_b":      amountB.Dec(),
		"shares_burned": shares.Dec(),
	})
}

func (s *Server) handleSwap(c *gin.Context) {
	var req swapRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	caller, err := resolveCaller(c, req.Caller)
	if err != nil {
		writeError(c, err)
		return
	}
	tokenIn, err := parseAddress("token_in", req.TokenIn)
	if err != nil {
		writeError(c, err)
		return
	}
	amountIn, err := parseAmount("amount_in", req.AmountIn)
	if err != nil {
		writeError(c, err)
		return
	}
	var minOut *uint256.Int
	if req.MinAmountOut != "" {
		if minOut, err = parseAmount("min_amount_out", req.MinAmountOut); err != nil {
			writeError(c, err)
			return
		}
	}

	amountOut, err := s.pool.Swap(c.Request.Context(), caller, tokenIn, amountIn, minOut, req.Deadline)
	s.metrics.ObserveOperation("swap", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token_in":   strings.ToLower(tokenIn.Hex()),
		"amount_in":  amountIn.Dec(),
		"amount_out": amountOut.Dec(),
	})
}

func (s *Server) handlePause(c *gin.Context) {
	s.handleGuard(c, "pause", s.pool.Pause)
}

func (s *Server) handleUnpause(c *gin.Context) {
	s.handleGuard(c, "unpause", s.pool.Unpause)
}

func (s *Server) handleGuard(c *gin.Context, operation string, fn func(common.Address) error) {
	var req callerRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	caller, err := resolveCaller(c, req.Caller)
	if err != nil {
		writeError(c, err)
		return
	}
	err = fn(caller)
	s.metrics.ObserveOperation(operation, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": s.pool.IsPaused()})
}

func (s *Server) handleBalance(c *gin.Context) {
	tok, err := s.lookupToken(c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	holder, err := parseAddress("holder", c.Param("holder"))
	if err != nil {
		writeError(c, err)
		return
	}
	balance, err := tok.BalanceOf(c.Request.Context(), holder)
	if err != nil {
		writeError(c, err)
		return
	}
	allowance, err := tok.Allowance(c.Request.Context(), holder, s.pool.Address())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":          strings.ToLower(tok.Address().Hex()),
		"holder":         strings.ToLower(holder.Hex()),
		"balance":        balance.Dec(),
		"pool_allowance": allowance.Dec(),
	})
}

func (s *Server) handleApprove(c *gin.Context) {
	tok, err := s.lookupToken(c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req approveRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, err)
		return
	}
	owner, err := resolveCaller(c, req.Caller)
	if err != nil {
		writeError(c, err)
		return
	}
	spender := s.pool.Address()
	if req.Spender != "" {
		if spender, err = parseAddress("spender", req.Spender); err != nil {
			writeError(c, err)
			return
		}
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	err = tok.Approve(c.Request.Context(), owner, spender, amount)
	s.metrics.ObserveOperation("approve", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     strings.ToLower(tok.Address().Hex()),
		"owner":     strings.ToLower(owner.Hex()),
		"spender":   strings.ToLower(spender.Hex()),
		"allowance": amount.Dec(),
	})
}

func (s *Server) handleAudit(c *gin.Context) {
	readers := []token.BalanceReader{s.tokens[s.pool.TokenA()], s.tokens[s.pool.TokenB()]}
	report, err := audit.Reconcile(c.Request.Context(), s.pool.Snapshot(), readers, s.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, entry := range report.Tokens {
		mismatch := 0.0
		if entry.Status == audit.StatusDeficit {
			mismatch = 1
		}
		s.metrics.AuditMismatch.WithLabelValues(entry.Token).Set(mismatch)
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) lookupToken(raw string) (token.Token, error) {
	address, err := parseAddress("token", raw)
	if err != nil {
		return nil, err
	}
	tok, ok := s.tokens[address]
	if !ok {
		return nil, fmt.Errorf("token %s is not served: %w", raw, errBadRequest)
	}
	return tok, nil
}

func bindJSON(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return fmt.Errorf("decode body: %w: %s", errBadRequest, err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s %q is not an address: %w", field, raw, errBadRequest)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w: %s", field, raw, errBadRequest, err.Error())
	}
	return amount, nil
}
