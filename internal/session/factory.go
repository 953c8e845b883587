package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/llm/openai"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/keys"
	"AgentKit-Chain/internal/web3/provider"
)

// DialFunc connects to the chain endpoint of a session.
type DialFunc func(ctx context.Context, chain web3.Chain, rpcURL string) (web3.Client, error)

// LLMFunc builds the model client from explicit credentials.
type LLMFunc func(cfg openai.Config) (llm.Client, error)

// AgentFactoryConfig wires the collaborators of a session agent.
type AgentFactoryConfig struct {
	Chain        web3.Chain
	LLMBaseURL   string
	LLMTimeout   time.Duration
	SystemPrompt string
	MaxSteps     int
	StatusCache  web3.StatusCache
	StatusTTL    time.Duration
	Logger       *slog.Logger

	// Dial and NewLLM default to provider.Dial and openai.NewClient.
	Dial   DialFunc
	NewLLM LLMFunc
}

// AgentFactory builds a ReAct agent with chain tools for each session.
type AgentFactory struct {
	cfg AgentFactoryConfig
}

// NewAgentFactory validates cfg and fills defaults.
func NewAgentFactory(cfg AgentFactoryConfig) (*AgentFactory, error) {
	if cfg.Chain == "" {
		cfg.Chain = web3.ChainSolana
	}
	if _, err := web3.ParseChain(string(cfg.Chain)); err != nil {
		return nil, err
	}
	if cfg.Dial == nil {
		cfg.Dial = provider.Dial
	}
	if cfg.NewLLM == nil {
		cfg.NewLLM = func(c openai.Config) (llm.Client, error) { return openai.NewClient(c) }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AgentFactory{cfg: cfg}, nil
}

// Build implements Factory. Credentials flow only into the clients that need
// them; nothing is read from or written to the process environment.
func (f *AgentFactory) Build(ctx context.Context, cfg Config, material *keys.Material) (Handle, error) {
	if material == nil || material.Wiped() {
		return nil, errors.New("key material is not available")
	}
	if want := f.cfg.Chain.KeyScheme(); material.Scheme() != want {
		return nil, fmt.Errorf("chain %s needs %s keys, got %s", f.cfg.Chain, want, material.Scheme())
	}

	chainClient, err := f.cfg.Dial(ctx, f.cfg.Chain, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}
	client := chainClient
	if f.cfg.StatusCache != nil && f.cfg.StatusTTL > 0 {
		client = web3.NewCachedClient(chainClient, f.cfg.StatusCache, cacheKey(f.cfg.Chain, cfg.RPCURL), f.cfg.StatusTTL)
	}

	llmClient, err := f.cfg.NewLLM(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     f.cfg.LLMBaseURL,
		Model:       cfg.LLM.ModelName,
		Temperature: llm.Float64(cfg.LLM.Temperature),
		Timeout:     f.cfg.LLMTimeout,
	})
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	signer, err := keys.NewSigner(material.Scheme(), material.EncodedSecret())
	if err != nil {
		chainClient.Close()
		return nil, fmt.Errorf("load wallet signer: %w", err)
	}

	registry, err := agent.NewToolRegistry(agent.ChainTools(client, signer)...)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	ag, err := agent.New(llmClient,
		agent.WithSystemPrompt(f.cfg.SystemPrompt),
		agent.WithMaxSteps(f.cfg.MaxSteps),
		agent.WithModel(cfg.LLM.ModelName),
		agent.WithTemperature(cfg.LLM.Temperature),
		agent.WithTools(registry),
		agent.WithLogger(f.cfg.Logger),
		agent.WithCloser(chainClient.Close),
	)
	if err != nil {
		chainClient.Close()
		return nil, err
	}
	return ag, nil
}

// cacheKey scopes cached status to one endpoint without embedding the URL,
// which may carry a provider token.
func cacheKey(chain web3.Chain, rpcURL string) string {
	sum := sha256.Sum256([]byte(rpcURL))
	return string(chain) + ":" + hex.EncodeToString(sum[:8])
}

var _ Factory = (*AgentFactory)(nil)
