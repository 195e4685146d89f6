package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ParseAddress converts a hex string into common.Address, rejecting the
// zero address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	address := common.HexToAddress(input)
	if address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address not allowed")
	}
	return address, nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		address, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// ParseAmount parses a base-10 token amount.
func ParseAmount(input string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(input))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	return amount, nil
}

// MintSeed is one initial token balance.
type MintSeed struct {
	Holder common.Address
	Amount *uint256.Int
}

// ParseMintSeeds converts holder=amount pairs into seeds ordered by holder.
func ParseMintSeeds(pairs map[string]string) ([]MintSeed, error) {
	holders := make([]string, 0, len(pairs))
	for holder := range pairs {
		holders = append(holders, holder)
	}
	sort.Strings(holders)

	seeds := make([]MintSeed, 0, len(pairs))
	for _, holder := range holders {
		address, err := ParseAddress(holder)
		if err != nil {
			return nil, fmt.Errorf("mint holder: %w", err)
		}
		amount, err := ParseAmount(pairs[holder])
		if err != nil {
			return nil, fmt.Errorf("mint amount for %s: %w", holder, err)
		}
		seeds = append(seeds, MintSeed{Holder: address, Amount: amount})
	}
	return seeds, nil
}

// ParseAPIKeys converts holder=key pairs into a key to holder map. A key may
// act for one holder only.
func ParseAPIKeys(pairs map[string]string) (map[string]common.Address, error) {
	keys := make(map[string]common.Address, len(pairs))
	for holder, key := range pairs {
		address, err := ParseAddress(holder)
		if err != nil {
			return nil, fmt.Errorf("api key holder: %w", err)
		}
		if len(key) < 16 {
			return nil, fmt.Errorf("api key for %s is shorter than 16 characters", address.Hex())
		}
		if other, ok := keys[key]; ok && other != address {
			return nil, fmt.Errorf("api key shared by %s and %s", other.Hex(), address.Hex())
		}
		keys[key] = address
	}
	return keys, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return time.Time{}, err
	}
	return tm.UTC(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
