// Package chain reads account state from an Ethereum JSON-RPC provider.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"vanguard/internal/ports"
)

var ErrInvalidAddress = errors.New("invalid address")

type Client struct {
	rpc     *ethclient.Client
	timeout time.Duration
}

var _ ports.ChainState = (*Client)(nil)

// Dial prepares a client for endpoint. HTTP endpoints are not contacted until
// the first call.
func Dial(ctx context.Context, endpoint string, timeout time.Duration) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{rpc: rpc, timeout: timeout}, nil
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(address), nil
}

// Balance returns the latest balance in wei.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rpc.BalanceAt(ctx, addr, nil)
}

// TransactionCount returns the account nonce at the latest block.
func (c *Client) TransactionCount(ctx context.Context, address string) (uint64, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rpc.NonceAt(ctx, addr, nil)
}

func (c *Client) Close() { c.rpc.Close() }
