package eventlog

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityPool/internal/model"
)

// Decoder turns log records back into typed events.
type Decoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

func NewDecoder() (*Decoder, error) {
	poolABI, err := PoolEventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool event abi: %w", err)
	}
	topicToName := make(map[string]string, len(poolABI.Events))
	for name, event := range poolABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &Decoder{poolABI: poolABI, topicToName: topicToName}, nil
}

// CanDecode checks if the topic0 is a pool event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.PoolAddress) {
		return nil, fmt.Errorf("invalid pool address: %s", log.PoolAddress)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case "LiquidityAdded":
		decoded, err = d.decodeLiquidity(log, name)
	case "LiquidityRemoved":
		decoded, err = d.decodeLiquidity(log, name)
	case "Swapped":
		decoded, err = d.decodeSwapped(log)
	case "Paused", "Unpaused":
		decoded, err = d.decodePause(log, name)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	return &model.TypedEvent{
		PoolAddress: log.PoolAddress,
		Sequence:    log.Sequence,
		LogIndex:    log.LogIndex,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func (d *Decoder) decodeLiquidity(log model.LogRecord, name string) (interface{}, error) {
	event := d.poolABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	var indexed struct {
		Provider common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	amounts, err := asBigInts(values, 3)
	if err != nil {
		return nil, fmt.Errorf("%s values: %w", name, err)
	}

	if name == "LiquidityRemoved" {
		return model.LiquidityRemovedData{
			Provider:     indexed.Provider.Hex(),
			AmountA:      amounts[0].String(),
			AmountB:      amounts[1].String(),
			SharesBurned: amounts[2].String(),
		}, nil
	}
	return model.LiquidityAddedData{
		Provider:     indexed.Provider.Hex(),
		AmountA:      amounts[0].String(),
		AmountB:      amounts[1].String(),
		SharesMinted: amounts[2].String(),
	}, nil
}

func (d *Decoder) decodeSwapped(log model.LogRecord) (model.SwappedData, error) {
	event := d.poolABI.Events["Swapped"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.SwappedData{}, err
	}
	var indexed struct {
		Trader   common.Address
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwappedData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwappedData{}, err
	}
	amounts, err := asBigInts(values, 2)
	if err != nil {
		return model.SwappedData{}, fmt.Errorf("swapped values: %w", err)
	}

	return model.SwappedData{
		Trader:    indexed.Trader.Hex(),
		TokenIn:   indexed.TokenIn.Hex(),
		AmountIn:  amounts[0].String(),
		TokenOut:  indexed.TokenOut.Hex(),
		AmountOut: amounts[1].String(),
	}, nil
}

func (d *Decoder) decodePause(log model.LogRecord, name string) (model.PauseData, error) {
	event := d.poolABI.Events[name]
	if len(log.Topics) != 1 {
		return model.PauseData{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PauseData{}, err
	}
	if len(values) != 1 {
		return model.PauseData{}, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}
	account, ok := values[0].(common.Address)
	if !ok {
		return model.PauseData{}, fmt.Errorf("unsupported address type %T", values[0])
	}
	return model.PauseData{Account: account.Hex()}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInts(values []interface{}, want int) ([]*big.Int, error) {
	if len(values) != want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(values))
	}
	out := make([]*big.Int, 0, want)
	for _, value := range values {
		v, ok := value.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unsupported integer type %T", value)
		}
		out = append(out, new(big.Int).Set(v))
	}
	return out, nil
}
