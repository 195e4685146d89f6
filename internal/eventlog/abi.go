// Package eventlog converts pool events to and from EVM-style log records so
// they can be stored next to, and decoded like, on-chain pool logs.
package eventlog

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountA", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountB", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "sharesMinted", "type": "uint256"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountA", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountB", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "sharesBurned", "type": "uint256"}
    ],
    "name": "LiquidityRemoved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "trader", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "Swapped",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "account", "type": "address"}
    ],
    "name": "Paused",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "account", "type": "address"}
    ],
    "name": "Unpaused",
    "type": "event"
  }
]`

var (
	poolEventsABI     abi.ABI
	poolEventsABIOnce sync.Once
	poolEventsABIErr  error
)

// PoolEventsABI returns the parsed pool event ABI.
func PoolEventsABI() (abi.ABI, error) {
	poolEventsABIOnce.Do(func() {
		poolEventsABI, poolEventsABIErr = abi.JSON(strings.NewReader(poolEventsABIJSON))
	})
	return poolEventsABI, poolEventsABIErr
}
