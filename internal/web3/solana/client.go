package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"AgentKit-Chain/internal/web3"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
)

const (
	lamportsDecimals = 9
	nativeUnit       = "SOL"
	addressSize      = 32
	commitment       = "confirmed"
)

// Config describes how to reach a Solana JSON-RPC endpoint.
type Config struct {
	RPCURL string
}

// Client implements web3.Client for Solana clusters. The go-ethereum RPC
// client is used as a plain JSON-RPC 2.0 transport.
type Client struct {
	rpcURL string
	rpc    *gethrpc.Client
	mu     sync.Mutex
}

// NewClient dials the endpoint. HTTP endpoints are dialled lazily, so an
// unreachable node surfaces on the first call.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("solana rpc url is required")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial solana rpc: %w", web3.Redact(err, rpcURL))
	}
	return &Client{rpcURL: rpcURL, rpc: rpcClient}, nil
}

// Chain implements web3.Client.
func (c *Client) Chain() web3.Chain { return web3.ChainSolana }

// Close releases the transport.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
}

// Balance returns the lamport balance of address.
func (c *Client) Balance(ctx context.Context, address string) (web3.Balance, error) {
	address = strings.TrimSpace(address)
	if err := ValidateAddress(address); err != nil {
		return web3.Balance{}, err
	}
	rpcClient, err := c.client()
	if err != nil {
		return web3.Balance{}, err
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := rpcClient.CallContext(ctx, &result, "getBalance", address, map[string]string{"commitment": commitment}); err != nil {
		return web3.Balance{}, fmt.Errorf("getBalance: %w", web3.Redact(err, c.rpcURL))
	}
	return web3.Balance{
		Address:  address,
		Amount:   new(big.Int).SetUint64(result.Value),
		Unit:     nativeUnit,
		Decimals: lamportsDecimals,
	}, nil
}

// Status reads slot, genesis hash and node version in one batch.
func (c *Client) Status(ctx context.Context) (web3.NetworkStatus, error) {
	rpcClient, err := c.client()
	if err != nil {
		return web3.NetworkStatus{}, err
	}

	var (
		slot    uint64
		genesis string
		version struct {
			Core string `json:"solana-core"`
		}
	)
	batch := []gethrpc.BatchElem{
		{Method: "getSlot", Args: []any{map[string]string{"commitment": commitment}}, Result: &slot},
		{Method: "getGenesisHash", Result: &genesis},
		{Method: "getVersion", Result: &version},
	}
	if err := rpcClient.BatchCallContext(ctx, batch); err != nil {
		return web3.NetworkStatus{}, fmt.Errorf("solana status: %w", web3.Redact(err, c.rpcURL))
	}
	for _, elem := range batch[:2] {
		if elem.Error != nil {
			return web3.NetworkStatus{}, fmt.Errorf("%s: %w", elem.Method, web3.Redact(elem.Error, c.rpcURL))
		}
	}

	status := web3.NetworkStatus{Chain: web3.ChainSolana, ChainID: genesis, Height: slot}
	// getVersion is informational; some gateways do not expose it.
	if batch[2].Error == nil {
		status.Version = version.Core
	}
	return status, nil
}

func (c *Client) client() (*gethrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc == nil {
		return nil, errors.New("solana client is closed")
	}
	return c.rpc, nil
}

// ValidateAddress checks that address is a base58 ed25519 public key.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != addressSize {
		return fmt.Errorf("invalid solana address %q", address)
	}
	return nil
}

var _ web3.Client = (*Client)(nil)
