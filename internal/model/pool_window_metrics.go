package model

import "time"

// PoolWindowMetrics stores aggregated pool activity for one time window.
// Volume and Fees are keyed by lowercase input token address.
type PoolWindowMetrics struct {
	PoolAddress      string            `json:"pool_address"`
	WindowSizeSecs   int64             `json:"window_size_secs"`
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	FirstSequence    uint64            `json:"first_sequence"`
	LastSequence     uint64            `json:"last_sequence"`
	SwapCount        uint64            `json:"swap_count"`
	LiquidityAdds    uint64            `json:"liquidity_adds"`
	LiquidityRemoves uint64            `json:"liquidity_removes"`
	GuardEvents      uint64            `json:"guard_events"`
	Volume           map[string]string `json:"volume"`
	Fees             map[string]string `json:"fees"`
	SharesMinted     string            `json:"shares_minted"`
	SharesBurned     string            `json:"shares_burned"`
}
