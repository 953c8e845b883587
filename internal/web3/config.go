package web3

import (
	"fmt"
	"strings"

	"AgentKit-Chain/internal/web3/keys"
)

// Chain identifies the family of network a session is bound to.
type Chain string

const (
	// ChainSolana speaks Solana JSON-RPC and uses ed25519 wallets.
	ChainSolana Chain = "solana"
	// ChainEVM speaks Ethereum JSON-RPC and uses secp256k1 wallets.
	ChainEVM Chain = "evm"
)

// ParseChain normalises a configured chain name.
func ParseChain(name string) (Chain, error) {
	switch Chain(strings.ToLower(strings.TrimSpace(name))) {
	case ChainSolana, "":
		return ChainSolana, nil
	case ChainEVM, "ethereum":
		return ChainEVM, nil
	default:
		return "", fmt.Errorf("unsupported chain type %q", name)
	}
}

// KeyScheme returns the wallet scheme the chain expects.
func (c Chain) KeyScheme() keys.Scheme {
	if c == ChainEVM {
		return keys.SchemeSecp256k1
	}
	return keys.SchemeEd25519
}

// Redact removes every occurrence of secret from err's message while keeping
// the wrapped chain intact. RPC URLs often embed provider API keys, and the
// HTTP transport echoes the URL in dial errors.
func Redact(err error, secret string) error {
	if err == nil || strings.TrimSpace(secret) == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, secret, "[REDACTED]"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
