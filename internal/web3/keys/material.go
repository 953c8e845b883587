package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Scheme names the signature algorithm of a wallet keypair.
type Scheme string

const (
	// SchemeEd25519 produces Solana wallets: base58 address, base58 64-byte secret.
	SchemeEd25519 Scheme = "ed25519"
	// SchemeSecp256k1 produces EVM wallets: EIP-55 address, hex 32-byte secret.
	SchemeSecp256k1 Scheme = "secp256k1"
)

// SeedSize is the number of derived bytes consumed as keypair seed.
const SeedSize = 32

const redacted = "<redacted>"

// ParseScheme validates a scheme name.
func ParseScheme(name string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(name))) {
	case SchemeEd25519:
		return SchemeEd25519, nil
	case SchemeSecp256k1:
		return SchemeSecp256k1, nil
	default:
		return "", fmt.Errorf("unsupported key scheme %q", name)
	}
}

// Material is a wallet keypair owned by exactly one session. The secret is
// never rendered by fmt or slog; use EncodedSecret only at the boundary to the
// signing library.
type Material struct {
	scheme  Scheme
	address string
	secret  []byte
}

// FromSeed deterministically builds key material from a 32-byte seed.
// The seed slice is not retained.
func FromSeed(scheme Scheme, seed []byte) (*Material, error) {
	if len(seed) < SeedSize {
		return nil, fmt.Errorf("seed must be at least %d bytes, got %d", SeedSize, len(seed))
	}
	seed = seed[:SeedSize]

	switch scheme {
	case SchemeEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return &Material{scheme: scheme, address: base58.Encode(pub), secret: []byte(priv)}, nil
	case SchemeSecp256k1:
		key, err := crypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("seed is not a valid secp256k1 scalar: %w", err)
		}
		return &Material{
			scheme:  scheme,
			address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
			secret:  crypto.FromECDSA(key),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported key scheme %q", scheme)
	}
}

// Scheme returns the signature algorithm.
func (m *Material) Scheme() Scheme {
	if m == nil {
		return ""
	}
	return m.scheme
}

// Address returns the public wallet address.
func (m *Material) Address() string {
	if m == nil {
		return ""
	}
	return m.address
}

// EncodedSecret renders the secret in the wire format expected by the chain
// tooling: base58 of the 64-byte ed25519 private key, or hex of the
// secp256k1 scalar.
func (m *Material) EncodedSecret() string {
	if m == nil || len(m.secret) == 0 {
		return ""
	}
	switch m.scheme {
	case SchemeEd25519:
		return base58.Encode(m.secret)
	case SchemeSecp256k1:
		return hex.EncodeToString(m.secret)
	default:
		return ""
	}
}

// Wipe zeroes the secret. The address stays readable.
func (m *Material) Wipe() {
	if m == nil {
		return
	}
	wipe(m.secret)
	m.secret = nil
}

// Wiped reports whether the secret has been discarded.
func (m *Material) Wiped() bool {
	return m == nil || len(m.secret) == 0
}

// String implements fmt.Stringer without the secret.
func (m *Material) String() string {
	if m == nil {
		return "keys.Material(nil)"
	}
	return fmt.Sprintf("keys.Material{scheme: %s, address: %s, secret: %s}", m.scheme, m.address, redacted)
}

// GoString keeps %#v from dumping the secret bytes.
func (m *Material) GoString() string {
	return m.String()
}

// LogValue implements slog.LogValuer.
func (m *Material) LogValue() slog.Value {
	if m == nil {
		return slog.StringValue("nil")
	}
	return slog.GroupValue(
		slog.String("scheme", string(m.scheme)),
		slog.String("address", m.address),
	)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
