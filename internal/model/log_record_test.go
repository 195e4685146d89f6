package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONFieldNames(t *testing.T) {
	original := LogRecord{
		PoolAddress: "0x1111111111111111111111111111111111111111",
		Sequence:    42,
		LogIndex:    1,
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal raw failed: %v", err)
	}
	for _, key := range []string{"pool_address", "sequence", "log_index", "topics", "data", "timestamp", "ingested_at"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("decoded mismatch: %+v != %+v", original, decoded)
	}
}

func TestLogRecordValidate(t *testing.T) {
	valid := LogRecord{PoolAddress: "0x1111111111111111111111111111111111111111", Sequence: 1, Topics: []string{"0xaaa"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	if valid.Topic0() != "0xaaa" {
		t.Fatalf("topic0 = %q", valid.Topic0())
	}

	cases := map[string]LogRecord{
		"no pool":     {Sequence: 1, Topics: []string{"0xaaa"}},
		"no sequence": {PoolAddress: valid.PoolAddress, Topics: []string{"0xaaa"}},
		"no topics":   {PoolAddress: valid.PoolAddress, Sequence: 1},
	}
	for name, record := range cases {
		if err := record.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
