package session

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/llm/openai"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/keys"
)

type fakeChain struct {
	closed      bool
	statusCalls int
}

func (c *fakeChain) Chain() web3.Chain { return web3.ChainSolana }
func (c *fakeChain) Balance(_ context.Context, address string) (web3.Balance, error) {
	return web3.Balance{Address: address, Amount: big.NewInt(1), Unit: "SOL", Decimals: 9}, nil
}
func (c *fakeChain) Status(context.Context) (web3.NetworkStatus, error) {
	c.statusCalls++
	return web3.NetworkStatus{Chain: web3.ChainSolana, Height: 1}, nil
}
func (c *fakeChain) Close() { c.closed = true }

func TestAgentFactoryInjectsCredentials(t *testing.T) {
	chain := &fakeChain{}
	var (
		dialURL string
		llmCfg  openai.Config
	)
	factory, err := NewAgentFactory(AgentFactoryConfig{
		Chain:       web3.ChainSolana,
		LLMBaseURL:  "http://llm.local/v1",
		StatusCache: web3.NewMemoryCache(),
		StatusTTL:   time.Minute,
		Dial: func(_ context.Context, c web3.Chain, rpcURL string) (web3.Client, error) {
			dialURL = rpcURL
			return chain, nil
		},
		NewLLM: func(cfg openai.Config) (llm.Client, error) {
			llmCfg = cfg
			return llm.ClientFunc(func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
				return &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: "ok"}}, nil
			}), nil
		},
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}

	material, err := keys.FromSeed(keys.SchemeEd25519, make([]byte, 32))
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	handle, err := factory.Build(context.Background(), testConfig, material)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if dialURL != testConfig.RPCURL {
		t.Fatalf("rpc url not injected: %q", dialURL)
	}
	if llmCfg.APIKey != testConfig.OpenAIAPIKey || llmCfg.Model != "gpt-4o-mini" || *llmCfg.Temperature != 0.7 || llmCfg.BaseURL != "http://llm.local/v1" {
		t.Fatalf("llm config not injected: %+v", llmCfg)
	}

	var texts []string
	for ev, err := range handle.Stream(context.Background(), "conv", "hi") {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		texts = append(texts, ev.Text)
	}
	if len(texts) != 1 || texts[0] != "ok" {
		t.Fatalf("unexpected stream: %v", texts)
	}

	handle.Close()
	if !chain.closed {
		t.Fatalf("closing the handle must close the chain client")
	}
}

func TestAgentFactoryRejectsSchemeMismatch(t *testing.T) {
	factory, err := NewAgentFactory(AgentFactoryConfig{Chain: web3.ChainEVM})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	material, _ := keys.FromSeed(keys.SchemeEd25519, make([]byte, 32))
	if _, err := factory.Build(context.Background(), testConfig, material); err == nil || !strings.Contains(err.Error(), "secp256k1") {
		t.Fatalf("expected scheme mismatch, got %v", err)
	}

	material.Wipe()
	if _, err := factory.Build(context.Background(), testConfig, material); err == nil {
		t.Fatalf("expected error for wiped material")
	}
}

func TestAgentFactoryClosesChainOnLLMFailure(t *testing.T) {
	chain := &fakeChain{}
	factory, err := NewAgentFactory(AgentFactoryConfig{
		Dial: func(context.Context, web3.Chain, string) (web3.Client, error) { return chain, nil },
		NewLLM: func(openai.Config) (llm.Client, error) {
			return nil, errors.New("bad key")
		},
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	material, _ := keys.FromSeed(keys.SchemeEd25519, make([]byte, 32))
	if _, err := factory.Build(context.Background(), testConfig, material); err == nil {
		t.Fatalf("expected llm error")
	}
	if !chain.closed {
		t.Fatalf("chain client must be closed when the llm client fails")
	}
}

func TestCacheKeyHidesURL(t *testing.T) {
	key := cacheKey(web3.ChainSolana, testConfig.RPCURL)
	if strings.Contains(key, "secret-token") || !strings.HasPrefix(key, "solana:") {
		t.Fatalf("unexpected cache key %q", key)
	}
	if key == cacheKey(web3.ChainSolana, "https://other") {
		t.Fatalf("different endpoints must not share a key")
	}
}

func TestNewAgentFactoryRejectsUnknownChain(t *testing.T) {
	if _, err := NewAgentFactory(AgentFactoryConfig{Chain: "cosmos"}); err == nil {
		t.Fatalf("expected error")
	}
}
