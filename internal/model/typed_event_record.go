package model

import "encoding/json"

// TypedEventRecord is a TypedEvent read back from JSONL with the payload
// left undecoded until the event name is known.
type TypedEventRecord struct {
	PoolAddress string          `json:"pool_address"`
	Sequence    uint64          `json:"sequence"`
	LogIndex    uint64          `json:"log_index"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}
