package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"liquidityPool/internal/pool"
	"liquidityPool/internal/token"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{pool.ErrCompensationFailed, http.StatusInternalServerError, "compensation_failed"},
	{errUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{errCallerMismatch, http.StatusForbidden, "caller_mismatch"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{pool.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
	{pool.ErrZeroAmount, http.StatusBadRequest, "zero_amount"},
	{pool.ErrInvalidCaller, http.StatusBadRequest, "invalid_caller"},
	{token.ErrZeroAddress, http.StatusBadRequest, "zero_address"},
	{pool.ErrUnauthorizedCaller, http.StatusForbidden, "unauthorized_caller"},
	{pool.ErrPoolPaused, http.StatusConflict, "pool_paused"},
	{pool.ErrPoolNotPaused, http.StatusConflict, "pool_not_paused"},
	{pool.ErrInvalidDeadline, http.StatusUnprocessableEntity, "deadline_passed"},
	{pool.ErrSlippageExceeded, http.StatusUnprocessableEntity, "slippage_exceeded"},
	{pool.ErrInsufficientShares, http.StatusUnprocessableEntity, "insufficient_shares"},
	{pool.ErrInsufficientLiquidityMinted, http.StatusUnprocessableEntity, "insufficient_liquidity_minted"},
	{pool.ErrInsufficientLiquidityBurned, http.StatusUnprocessableEntity, "insufficient_liquidity_burned"},
	{pool.ErrInsufficientLiquidity, http.StatusUnprocessableEntity, "insufficient_liquidity"},
	{pool.ErrInsufficientOutputAmount, http.StatusUnprocessableEntity, "insufficient_output_amount"},
	{pool.ErrTokenTransferFailed, http.StatusUnprocessableEntity, "token_transfer_failed"},
	{token.ErrInsufficientAllowance, http.StatusUnprocessableEntity, "insufficient_allowance"},
	{token.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{pool.ErrOverflow, http.StatusUnprocessableEntity, "overflow"},
	{pool.ErrNegativeReserve, http.StatusUnprocessableEntity, "negative_reserve"},
	{token.ErrReadOnly, http.StatusNotImplemented, "read_only_token"},
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	c.JSON(status, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}
