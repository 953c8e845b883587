package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"AgentKit-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const (
	weiDecimals = 18
	nativeUnit  = "ETH"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	RPCURL string
	// Unit overrides the native token symbol, e.g. "MATIC".
	Unit string
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	rpcURL    string
	unit      string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	mu        sync.Mutex
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", web3.Redact(err, rpcURL))
	}

	unit := strings.TrimSpace(cfg.Unit)
	if unit == "" {
		unit = nativeUnit
	}

	return &Client{
		rpcURL:    rpcURL,
		unit:      unit,
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
	}, nil
}

// Chain implements web3.Client.
func (c *Client) Chain() web3.Chain { return web3.ChainEVM }

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.rpcClient = nil
}

// Balance returns the wei balance of address at the latest block.
func (c *Client) Balance(ctx context.Context, address string) (web3.Balance, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return web3.Balance{}, fmt.Errorf("无效的以太坊地址 %q", address)
	}
	eth, _, err := c.backends()
	if err != nil {
		return web3.Balance{}, err
	}

	balance, err := eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return web3.Balance{}, fmt.Errorf("查询余额失败: %w", web3.Redact(err, c.rpcURL))
	}
	return web3.Balance{
		Address:  common.HexToAddress(address).Hex(),
		Amount:   balance,
		Unit:     c.unit,
		Decimals: weiDecimals,
	}, nil
}

// Status gathers lightweight metadata from the chain.
func (c *Client) Status(ctx context.Context) (web3.NetworkStatus, error) {
	eth, rpcClient, err := c.backends()
	if err != nil {
		return web3.NetworkStatus{}, err
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return web3.NetworkStatus{}, fmt.Errorf("获取链 ID 失败: %w", web3.Redact(err, c.rpcURL))
	}
	blockNumber, err := eth.BlockNumber(ctx)
	if err != nil {
		return web3.NetworkStatus{}, fmt.Errorf("获取最新区块高度失败: %w", web3.Redact(err, c.rpcURL))
	}

	status := web3.NetworkStatus{
		Chain:   web3.ChainEVM,
		ChainID: toHexBig(chainID),
		Height:  blockNumber,
	}
	var version string
	if err := rpcClient.CallContext(ctx, &version, "web3_clientVersion"); err == nil {
		status.Version = version
	}
	return status, nil
}

func (c *Client) backends() (*ethclient.Client, *gethrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth == nil {
		return nil, nil, errors.New("未初始化的以太坊客户端")
	}
	return c.eth, c.rpcClient, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

var _ web3.Client = (*Client)(nil)
