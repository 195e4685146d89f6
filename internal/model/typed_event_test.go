package model

import (
	"encoding/json"
	"testing"
)

func TestSwappedDataJSONStringAmounts(t *testing.T) {
	payload := SwappedData{
		Trader:    "0x1111111111111111111111111111111111111111",
		TokenIn:   "0x2222222222222222222222222222222222222222",
		AmountIn:  "100000000000000000000",
		TokenOut:  "0x3333333333333333333333333333333333333333",
		AmountOut: "98",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := decoded["amount_in"].(string); !ok {
		t.Fatalf("amount_in should be string")
	}
	if _, ok := decoded["amount_out"].(string); !ok {
		t.Fatalf("amount_out should be string")
	}
}
