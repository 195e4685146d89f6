package aggregate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress      string
	WindowStart      uint64
	WindowEnd        uint64
	FirstSequence    uint64
	LastSequence     uint64
	SwapCount        uint64
	LiquidityAdds    uint64
	LiquidityRemoves uint64
	GuardEvents      uint64
	Volume           map[string]*uint256.Int
	Fees             map[string]*uint256.Int
	SharesMinted     *uint256.Int
	SharesBurned     *uint256.Int
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress:   poolKey(record.PoolAddress),
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		FirstSequence: record.Sequence,
		LastSequence:  record.Sequence,
		Volume:        make(map[string]*uint256.Int),
		Fees:          make(map[string]*uint256.Int),
		SharesMinted:  new(uint256.Int),
		SharesBurned:  new(uint256.Int),
	}
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Sequence < a.FirstSequence {
		a.FirstSequence = record.Sequence
	}
	if record.Sequence > a.LastSequence {
		a.LastSequence = record.Sequence
	}

	switch record.EventName {
	case "Swapped":
		var swap model.SwappedData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case "LiquidityAdded":
		var added model.LiquidityAddedData
		if err := json.Unmarshal(record.Decoded, &added); err != nil {
			return fmt.Errorf("decode liquidity added: %w", err)
		}
		if err := addTo(a.SharesMinted, added.SharesMinted); err != nil {
			return err
		}
		a.LiquidityAdds++
		return nil
	case "LiquidityRemoved":
		var removed model.LiquidityRemovedData
		if err := json.Unmarshal(record.Decoded, &removed); err != nil {
			return fmt.Errorf("decode liquidity removed: %w", err)
		}
		if err := addTo(a.SharesBurned, removed.SharesBurned); err != nil {
			return err
		}
		a.LiquidityRemoves++
		return nil
	case "Paused", "Unpaused":
		a.GuardEvents++
		return nil
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwappedData) error {
	amountIn, err := parseAmount(swap.AmountIn)
	if err != nil {
		return err
	}
	token := strings.ToLower(swap.TokenIn)
	volume := a.Volume[token]
	if volume == nil {
		volume = new(uint256.Int)
		a.Volume[token] = volume
	}
	if _, overflow := volume.AddOverflow(volume, amountIn); overflow {
		return fmt.Errorf("volume of %s overflows", token)
	}

	fee := feeFromAmount(amountIn)
	total := a.Fees[token]
	if total == nil {
		total = new(uint256.Int)
		a.Fees[token] = total
	}
	total.Add(total, fee)

	a.SwapCount++
	return nil
}

// Metrics converts the accumulator into its stored form.
func (a *Accumulator) Metrics(windowSeconds uint64) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		PoolAddress:      a.PoolAddress,
		WindowSizeSecs:   int64(windowSeconds),
		WindowStart:      time.Unix(int64(a.WindowStart), 0).UTC(),
		WindowEnd:        time.Unix(int64(a.WindowEnd), 0).UTC(),
		FirstSequence:    a.FirstSequence,
		LastSequence:     a.LastSequence,
		SwapCount:        a.SwapCount,
		LiquidityAdds:    a.LiquidityAdds,
		LiquidityRemoves: a.LiquidityRemoves,
		GuardEvents:      a.GuardEvents,
		Volume:           decimals(a.Volume),
		Fees:             decimals(a.Fees),
		SharesMinted:     a.SharesMinted.Dec(),
		SharesBurned:     a.SharesBurned.Dec(),
	}
}

// feeFromAmount is the part of amountIn retained by the pool, rounded down.
func feeFromAmount(amountIn *uint256.Int) *uint256.Int {
	fee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(pool.FeeNumerator))
	if overflow {
		fee = new(uint256.Int).Div(amountIn, uint256.NewInt(pool.FeeDenominator))
		return fee.Mul(fee, uint256.NewInt(pool.FeeNumerator))
	}
	return fee.Div(fee, uint256.NewInt(pool.FeeDenominator))
}

func addTo(target *uint256.Int, value string) error {
	amount, err := parseAmount(value)
	if err != nil {
		return err
	}
	if _, overflow := target.AddOverflow(target, amount); overflow {
		return fmt.Errorf("share total overflows")
	}
	return nil
}

func parseAmount(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	parsed, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return parsed, nil
}

func decimals(values map[string]*uint256.Int) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = value.Dec()
	}
	return out
}
