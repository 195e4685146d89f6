package model

// DecodeError records a decode failure for a log line.
type DecodeError struct {
	PoolAddress string `json:"pool_address"`
	Sequence    uint64 `json:"sequence"`
	LogIndex    uint64 `json:"log_index"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
