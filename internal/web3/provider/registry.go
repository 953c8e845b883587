package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
	"AgentKit-Chain/internal/web3/solana"
)

// DialFunc connects to one chain endpoint.
type DialFunc func(ctx context.Context, rpcURL string) (web3.Client, error)

// Registry maps chain types to the dialer that builds their client.
type Registry struct {
	mu      sync.RWMutex
	dialers map[web3.Chain]DialFunc
}

// NewRegistry returns a registry preloaded with the Solana and EVM dialers.
func NewRegistry() *Registry {
	r := &Registry{dialers: make(map[web3.Chain]DialFunc)}
	r.Register(web3.ChainSolana, func(ctx context.Context, rpcURL string) (web3.Client, error) {
		return solana.NewClient(ctx, solana.Config{RPCURL: rpcURL})
	})
	r.Register(web3.ChainEVM, func(ctx context.Context, rpcURL string) (web3.Client, error) {
		return ethereum.NewClient(ctx, ethereum.Config{RPCURL: rpcURL})
	})
	return r
}

// Register installs or replaces the dialer for chain.
func (r *Registry) Register(chain web3.Chain, dial DialFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialers[chain] = dial
}

// Dial builds a client for chain against rpcURL.
func (r *Registry) Dial(ctx context.Context, chain web3.Chain, rpcURL string) (web3.Client, error) {
	if r == nil {
		return nil, errors.New("nil chain registry")
	}
	if strings.TrimSpace(rpcURL) == "" {
		return nil, errors.New("rpc url is required")
	}
	r.mu.RLock()
	dial, ok := r.dialers[chain]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported chain type %q", chain)
	}
	return dial(ctx, rpcURL)
}

// Chains returns the registered chain types.
func (r *Registry) Chains() []web3.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]web3.Chain, 0, len(r.dialers))
	for chain := range r.dialers {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

var defaultRegistry = NewRegistry()

// Dial uses the default registry.
func Dial(ctx context.Context, chain web3.Chain, rpcURL string) (web3.Client, error) {
	return defaultRegistry.Dial(ctx, chain, rpcURL)
}
