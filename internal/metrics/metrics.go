// Package metrics exposes Prometheus collectors for pool activity.
package metrics

import (
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"liquidityPool/internal/pool"
)

const namespace = "liquidity_pool"

// Metrics holds the pool collectors. It is also a pool.Emitter that counts
// committed events.
type Metrics struct {
	Operations    *prometheus.CounterVec
	Events        *prometheus.CounterVec
	SwapVolume    *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	RateLimited   prometheus.Counter
	AuditMismatch *prometheus.GaugeVec
	LastSequence  prometheus.Gauge
}

var _ pool.Emitter = (*Metrics)(nil)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Pool operations by name and result",
			},
			[]string{"operation", "result"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed pool events by name",
			},
			[]string{"event"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swap_volume_total",
				Help:      "Swap input volume in base units",
			},
			[]string{"token"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		AuditMismatch: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audit_mismatch",
				Help:      "1 when the last audit found reserve and balance disagreeing",
			},
			[]string{"token"},
		),
		LastSequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_sequence",
			Help:      "Sequence of the most recent committed event",
		}),
	}
}

// WatchPool registers gauges that read the pool state at scrape time.
func (m *Metrics) WatchPool(reg prometheus.Registerer, p *pool.Pool) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "reserve_a", Help: "Reserve of token A in base units",
	}, func() float64 {
		a, _ := p.Reserves()
		return toFloat(a)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "reserve_b", Help: "Reserve of token B in base units",
	}, func() float64 {
		_, b := p.Reserves()
		return toFloat(b)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "total_shares", Help: "Outstanding pool shares",
	}, func() float64 {
		return toFloat(p.TotalShares())
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "paused", Help: "1 while the pool is paused",
	}, func() float64 {
		if p.IsPaused() {
			return 1
		}
		return 0
	})
}

// Emit counts a committed event. It runs under the pool lock and must not
// read pool state.
func (m *Metrics) Emit(seq uint64, event pool.Event) {
	m.Events.WithLabelValues(event.EventName()).Inc()
	m.LastSequence.Set(float64(seq))
	if swap, ok := event.(pool.Swapped); ok {
		m.SwapVolume.WithLabelValues(swap.TokenIn.Hex()).Add(toFloat(swap.AmountIn))
	}
}

// ObserveOperation records the outcome of a pool call.
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.Operations.WithLabelValues(operation, Result(err)).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Result maps an operation error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pool.ErrPoolPaused):
		return "paused"
	case errors.Is(err, pool.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, pool.ErrInvalidDeadline):
		return "deadline"
	case errors.Is(err, pool.ErrTokenTransferFailed):
		return "transfer_failed"
	case errors.Is(err, pool.ErrUnauthorizedCaller):
		return "unauthorized"
	default:
		return "rejected"
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
