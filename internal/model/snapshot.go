package model

// PoolSnapshot is the persisted form of the pool ledger. Amounts are base-10 strings.
type PoolSnapshot struct {
	Address     string            `json:"address"`
	TokenA      string            `json:"token_a"`
	TokenB      string            `json:"token_b"`
	Owner       string            `json:"owner"`
	ReserveA    string            `json:"reserve_a"`
	ReserveB    string            `json:"reserve_b"`
	TotalShares string            `json:"total_shares"`
	Shares      map[string]string `json:"shares"`
	Paused      bool              `json:"paused"`
	Sequence    uint64            `json:"sequence"`
}

// TokenSnapshot is the persisted form of an in-memory token ledger.
type TokenSnapshot struct {
	Address     string                       `json:"address"`
	Symbol      string                       `json:"symbol"`
	TotalSupply string                       `json:"total_supply"`
	Balances    map[string]string            `json:"balances"`
	Allowances  map[string]map[string]string `json:"allowances,omitempty"`
}

// StateSnapshot bundles the pool with the token ledgers that hold its reserves.
type StateSnapshot struct {
	Pool      PoolSnapshot    `json:"pool"`
	Tokens    []TokenSnapshot `json:"tokens,omitempty"`
	UpdatedAt string          `json:"updated_at"`
}
