package web3

import (
	"context"
	"math/big"
	"strings"
)

// Balance is the native-token balance of an address in base units.
type Balance struct {
	Address  string
	Amount   *big.Int
	Unit     string
	Decimals int
}

// Formatted renders the balance in whole units, e.g. "1.5 SOL".
func (b Balance) Formatted() string {
	amount := b.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	text := amount.String()
	if b.Decimals > 0 {
		neg := amount.Sign() < 0
		digits := new(big.Int).Abs(amount).String()
		if len(digits) <= b.Decimals {
			digits = strings.Repeat("0", b.Decimals-len(digits)+1) + digits
		}
		whole, frac := digits[:len(digits)-b.Decimals], strings.TrimRight(digits[len(digits)-b.Decimals:], "0")
		text = whole
		if frac != "" {
			text += "." + frac
		}
		if neg {
			text = "-" + text
		}
	}
	if b.Unit == "" {
		return text
	}
	return text + " " + b.Unit
}

// NetworkStatus summarises the node a session talks to.
type NetworkStatus struct {
	Chain   Chain  `json:"chain"`
	ChainID string `json:"chainId"`
	Height  uint64 `json:"height"`
	Version string `json:"version,omitempty"`
}

// Client defines the read-only chain surface the agent tools rely on.
type Client interface {
	Chain() Chain
	Balance(ctx context.Context, address string) (Balance, error)
	Status(ctx context.Context) (NetworkStatus, error)
	Close()
}
