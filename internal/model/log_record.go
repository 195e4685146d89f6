package model

import "fmt"

// LogRecord is the EVM-style log form of a pool event, as written to sinks.
// Topics[0] is the event id; indexed addresses follow as left-padded words.
type LogRecord struct {
	PoolAddress string   `json:"pool_address"`
	Sequence    uint64   `json:"sequence"`
	LogIndex    uint64   `json:"log_index"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the event id topic, or "" for an anonymous record.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// Validate checks the fields every sink relies on.
func (lr LogRecord) Validate() error {
	if lr.PoolAddress == "" {
		return fmt.Errorf("log record: missing pool address")
	}
	if lr.Sequence == 0 {
		return fmt.Errorf("log record: sequence must be > 0")
	}
	if lr.Topic0() == "" {
		return fmt.Errorf("log record %d: missing topic0", lr.Sequence)
	}
	return nil
}
