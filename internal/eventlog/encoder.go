package eventlog

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

// Encoder turns pool events into log records.
type Encoder struct {
	poolABI abi.ABI
}

func NewEncoder() (*Encoder, error) {
	poolABI, err := PoolEventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool event abi: %w", err)
	}
	return &Encoder{poolABI: poolABI}, nil
}

// Encode builds the log record for event. seq is the pool mutation sequence
// that produced it.
func (e *Encoder) Encode(poolAddress common.Address, seq, logIndex uint64, at time.Time, event pool.Event) (model.LogRecord, error) {
	var (
		topics []common.Hash
		values []interface{}
	)
	switch ev := event.(type) {
	case pool.LiquidityAdded:
		topics = []common.Hash{addressTopic(ev.Provider)}
		values = []interface{}{toBig(ev.AmountA), toBig(ev.AmountB), toBig(ev.SharesMinted)}
	case pool.LiquidityRemoved:
		topics = []common.Hash{addressTopic(ev.Provider)}
		values = []interface{}{toBig(ev.AmountA), toBig(ev.AmountB), toBig(ev.SharesBurned)}
	case pool.Swapped:
		topics = []common.Hash{addressTopic(ev.Trader), addressTopic(ev.TokenIn), addressTopic(ev.TokenOut)}
		values = []interface{}{toBig(ev.AmountIn), toBig(ev.AmountOut)}
	case pool.Paused:
		values = []interface{}{ev.Account}
	case pool.Unpaused:
		values = []interface{}{ev.Account}
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported event type %T", event)
	}

	abiEvent, ok := e.poolABI.Events[event.EventName()]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("event %s missing from abi", event.EventName())
	}
	data, err := abiEvent.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", abiEvent.Name, err)
	}

	hexTopics := make([]string, 0, len(topics)+1)
	hexTopics = append(hexTopics, abiEvent.ID.Hex())
	for _, topic := range topics {
		hexTopics = append(hexTopics, topic.Hex())
	}

	return model.LogRecord{
		PoolAddress: strings.ToLower(poolAddress.Hex()),
		Sequence:    seq,
		LogIndex:    logIndex,
		Topics:      hexTopics,
		Data:        hexutil.Encode(data),
		Timestamp:   uint64(at.Unix()),
		IngestedAt:  at.UTC().Format(time.RFC3339Nano),
	}, nil
}

func addressTopic(address common.Address) common.Hash {
	return common.BytesToHash(address.Bytes())
}

func toBig(value *uint256.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return value.ToBig()
}
