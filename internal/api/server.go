// Package api serves the pool over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"liquidityPool/internal/metrics"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/token"
)

// Config holds HTTP server settings.
type Config struct {
	RateLimit       float64
	RateBurst       int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// APIKeys maps each key to the account it may act for. Mutating routes
	// require one unless AllowUnauthenticated is set, in which case the
	// body's caller field is trusted.
	APIKeys              map[string]common.Address
	AllowUnauthenticated bool
}

// Server exposes pool reads, mutations, audits and metrics.
type Server struct {
	cfg      Config
	pool     *pool.Pool
	tokens   map[common.Address]token.Token
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	router   *gin.Engine
	limiter  *RateLimiter

	credentials []credential
}

// NewServer builds the router. tokens must contain both pool tokens.
func NewServer(cfg Config, p *pool.Pool, tokens []token.Token, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byAddress := make(map[common.Address]token.Token, len(tokens))
	for _, tok := range tokens {
		byAddress[tok.Address()] = tok
	}
	for _, required := range []common.Address{p.TokenA(), p.TokenB()} {
		if _, ok := byAddress[required]; !ok {
			return nil, fmt.Errorf("token %s not provided", required.Hex())
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		pool:     p,
		tokens:   byAddress,
		metrics:  m,
		gatherer: gatherer,
		logger:   logger,
		router:   router,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateBurst),

		credentials: newCredentials(cfg.APIKeys),
	}
	if len(s.credentials) == 0 && !cfg.AllowUnauthenticated {
		logger.Warn("no api keys configured; mutating routes will reject every request")
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/v1")
	v1.Use(s.requestLogger(), s.rateLimitMiddleware(), s.timeoutMiddleware())
	{
		v1.GET("/pool", s.handlePool)
		v1.GET("/reserves", s.handleReserves)
		v1.GET("/shares/:holder", s.handleShares)
		v1.GET("/quote", s.handleQuote)
		v1.GET("/audit", s.handleAudit)

		v1.GET("/tokens/:token/balance/:holder", s.handleBalance)
	}

	writes := v1.Group("")
	writes.Use(s.authenticate())
	{
		writes.POST("/liquidity/add", s.handleAddLiquidity)
		writes.POST("/liquidity/remove", s.handleRemoveLiquidity)
		writes.POST("/swap", s.handleSwap)
		writes.POST("/pause", s.handlePause)
		writes.POST("/unpause", s.handleUnpause)
		writes.POST("/tokens/:token/approve", s.handleApprove)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve api: %w", err)
		case <-ticker.C:
			if removed := s.limiter.CleanupStale(10 * time.Minute); removed > 0 {
				s.logger.Debug("rate limiters pruned", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			timeout := s.cfg.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			s.logger.Info("stopping api server")
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown api: %w", err)
			}
			return nil
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"paused":   s.pool.IsPaused(),
		"sequence": s.pool.Sequence(),
	})
}
