package eventlog

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

var (
	poolAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenA      = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	at          = time.Unix(1_700_000_000, 0)
)

func newCodec(t *testing.T) (*Encoder, *Decoder) {
	t.Helper()
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	dec, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return enc, dec
}

func TestSwappedLogLayout(t *testing.T) {
	enc, dec := newCodec(t)
	record, err := enc.Encode(poolAddress, 7, 3, at, pool.Swapped{
		Trader:    trader,
		TokenIn:   tokenA,
		AmountIn:  uint256.NewInt(100),
		TokenOut:  tokenB,
		AmountOut: uint256.NewInt(98),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	wantTopic0 := crypto.Keccak256Hash([]byte("Swapped(address,address,uint256,address,uint256)")).Hex()
	if record.Topics[0] != wantTopic0 {
		t.Fatalf("topic0 = %s, want %s", record.Topics[0], wantTopic0)
	}
	if len(record.Topics) != 4 {
		t.Fatalf("expected 4 topics, got %d", len(record.Topics))
	}
	if !strings.HasSuffix(record.Topics[1], strings.ToLower(trader.Hex()[2:])) {
		t.Fatalf("trader topic mismatch: %s", record.Topics[1])
	}
	if record.Sequence != 7 || record.LogIndex != 3 || record.Timestamp != uint64(at.Unix()) {
		t.Fatalf("position mismatch: %+v", record)
	}

	event, err := dec.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	swap, ok := event.Decoded.(model.SwappedData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Trader != trader.Hex() || swap.TokenIn != tokenA.Hex() || swap.TokenOut != tokenB.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if swap.AmountIn != "100" || swap.AmountOut != "98" {
		t.Fatalf("amount mismatch: %+v", swap)
	}
	if event.EventName != "Swapped" || event.Raw == nil || event.Raw.Topic0 != wantTopic0 {
		t.Fatalf("event metadata mismatch: %+v", event)
	}
}

func TestLiquidityEventsDecode(t *testing.T) {
	enc, dec := newCodec(t)
	amount, _ := uint256.FromDecimal("1000000000000000000000")

	added, err := enc.Encode(poolAddress, 1, 0, at, pool.LiquidityAdded{
		Provider: trader, AmountA: amount, AmountB: amount, SharesMinted: uint256.NewInt(999),
	})
	if err != nil {
		t.Fatalf("encode added: %v", err)
	}
	removed, err := enc.Encode(poolAddress, 2, 1, at, pool.LiquidityRemoved{
		Provider: trader, AmountA: uint256.NewInt(5), AmountB: uint256.NewInt(6), SharesBurned: uint256.NewInt(7),
	})
	if err != nil {
		t.Fatalf("encode removed: %v", err)
	}

	event, err := dec.Decode(added)
	if err != nil {
		t.Fatalf("decode added: %v", err)
	}
	a, ok := event.Decoded.(model.LiquidityAddedData)
	if !ok || a.AmountA != "1000000000000000000000" || a.SharesMinted != "999" || a.Provider != trader.Hex() {
		t.Fatalf("added mismatch: %+v", event.Decoded)
	}

	event, err = dec.Decode(removed)
	if err != nil {
		t.Fatalf("decode removed: %v", err)
	}
	r, ok := event.Decoded.(model.LiquidityRemovedData)
	if !ok || r.SharesBurned != "7" || r.AmountB != "6" {
		t.Fatalf("removed mismatch: %+v", event.Decoded)
	}
}

func TestPauseEventDecode(t *testing.T) {
	enc, dec := newCodec(t)
	record, err := enc.Encode(poolAddress, 3, 0, at, pool.Unpaused{Account: trader})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(record.Topics) != 1 {
		t.Fatalf("pause events carry no indexed topics, got %d", len(record.Topics))
	}
	event, err := dec.Decode(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data, ok := event.Decoded.(model.PauseData); !ok || data.Account != trader.Hex() || event.EventName != "Unpaused" {
		t.Fatalf("pause mismatch: %+v", event)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	enc, dec := newCodec(t)
	record, err := enc.Encode(poolAddress, 1, 0, at, pool.Paused{Account: trader})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if dec.CanDecode("0x" + strings.Repeat("0", 64)) {
		t.Fatalf("unknown topic accepted")
	}
	if !dec.CanDecode(strings.ToUpper(record.Topics[0])) {
		t.Fatalf("known topic rejected")
	}

	truncated := record
	truncated.Data = record.Data[:10]
	if _, err := dec.Decode(truncated); err == nil {
		t.Fatalf("expected error for truncated data")
	}
	noTopics := record
	noTopics.Topics = nil
	if _, err := dec.Decode(noTopics); err == nil {
		t.Fatalf("expected error for missing topics")
	}
	badPool := record
	badPool.PoolAddress = "pool"
	if _, err := dec.Decode(badPool); err == nil {
		t.Fatalf("expected error for invalid pool address")
	}
}
