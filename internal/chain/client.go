// Package chain wraps the go-ethereum RPC client used to read deployed
// token contracts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Block pins reads to one height.
type Block struct {
	Number    uint64
	Timestamp uint64
}

// Client is a read-only view of a node. It satisfies token.ContractCaller.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
	blocks  map[uint64]Block
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &Client{
		rpc:    rpcClient,
		eth:    ethclient.NewClient(rpcClient),
		blocks: make(map[uint64]Block),
	}, nil
}

func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

// ChainID is fetched once per client.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return new(big.Int).Set(id), nil
}

// BlockAt resolves number, or the head when number is 0.
func (c *Client) BlockAt(ctx context.Context, number uint64) (Block, error) {
	if number != 0 {
		c.mu.Lock()
		block, ok := c.blocks[number]
		c.mu.Unlock()
		if ok {
			return block, nil
		}
	}

	var query *big.Int
	if number != 0 {
		query = new(big.Int).SetUint64(number)
	}
	header, err := c.eth.HeaderByNumber(ctx, query)
	if err != nil {
		return Block{}, fmt.Errorf("header %d: %w", number, err)
	}
	block := Block{Number: header.Number.Uint64(), Timestamp: header.Time}

	c.mu.Lock()
	c.blocks[block.Number] = block
	c.mu.Unlock()
	return block, nil
}

// HasCode reports whether a contract is deployed at address.
func (c *Client) HasCode(ctx context.Context, address common.Address, block *big.Int) (bool, error) {
	code, err := c.eth.CodeAt(ctx, address, block)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, block)
}
