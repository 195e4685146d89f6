package model

// LiquidityAddedData is the decoded LiquidityAdded payload.
type LiquidityAddedData struct {
	Provider     string `json:"provider"`
	AmountA      string `json:"amount_a"`
	AmountB      string `json:"amount_b"`
	SharesMinted string `json:"shares_minted"`
}

// LiquidityRemovedData is the decoded LiquidityRemoved payload.
type LiquidityRemovedData struct {
	Provider     string `json:"provider"`
	AmountA      string `json:"amount_a"`
	AmountB      string `json:"amount_b"`
	SharesBurned string `json:"shares_burned"`
}

// SwappedData is the decoded Swapped payload.
type SwappedData struct {
	Trader    string `json:"trader"`
	TokenIn   string `json:"token_in"`
	AmountIn  string `json:"amount_in"`
	TokenOut  string `json:"token_out"`
	AmountOut string `json:"amount_out"`
}

// PauseData is the decoded Paused / Unpaused payload.
type PauseData struct {
	Account string `json:"account"`
}
