package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Signer signs off-chain messages with the session wallet.
type Signer interface {
	Address() string
	SignMessage(message []byte) (string, error)
}

// NewSigner parses a wire-encoded secret (see Material.EncodedSecret).
func NewSigner(scheme Scheme, encoded string) (Signer, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("empty secret")
	}
	switch scheme {
	case SchemeEd25519:
		raw, err := base58.Decode(encoded)
		if err != nil {
			return nil, errors.New("secret is not valid base58")
		}
		if len(raw) != ed25519.PrivateKeySize {
			wipe(raw)
			return nil, fmt.Errorf("ed25519 secret must be %d bytes", ed25519.PrivateKeySize)
		}
		priv := ed25519.PrivateKey(raw)
		return &ed25519Signer{
			key:     priv,
			address: base58.Encode(priv.Public().(ed25519.PublicKey)),
		}, nil
	case SchemeSecp256k1:
		raw, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
		if err != nil {
			return nil, errors.New("secret is not valid hex")
		}
		key, err := crypto.ToECDSA(raw)
		wipe(raw)
		if err != nil {
			return nil, errors.New("secret is not a valid secp256k1 key")
		}
		return &secp256k1Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}, nil
	default:
		return nil, fmt.Errorf("unsupported key scheme %q", scheme)
	}
}

type ed25519Signer struct {
	key     ed25519.PrivateKey
	address string
}

func (s *ed25519Signer) Address() string { return s.address }

// SignMessage returns the base58 detached signature, as Solana wallets do.
func (s *ed25519Signer) SignMessage(message []byte) (string, error) {
	return base58.Encode(ed25519.Sign(s.key, message)), nil
}

type secp256k1Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

func (s *secp256k1Signer) Address() string { return s.address }

// SignMessage produces an EIP-191 personal_sign signature with V in {27, 28}.
func (s *secp256k1Signer) SignMessage(message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// VerifyMessage checks a signature produced by SignMessage against address.
func VerifyMessage(scheme Scheme, address string, message []byte, signature string) (bool, error) {
	switch scheme {
	case SchemeEd25519:
		pub, err := base58.Decode(address)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return false, errors.New("invalid ed25519 address")
		}
		sig, err := base58.Decode(signature)
		if err != nil {
			return false, errors.New("invalid signature encoding")
		}
		return ed25519.Verify(ed25519.PublicKey(pub), message, sig), nil
	case SchemeSecp256k1:
		sig, err := hexutil.Decode(signature)
		if err != nil || len(sig) != crypto.SignatureLength {
			return false, errors.New("invalid signature encoding")
		}
		sig[crypto.RecoveryIDOffset] -= 27
		pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(crypto.PubkeyToAddress(*pub).Hex(), address), nil
	default:
		return false, fmt.Errorf("unsupported key scheme %q", scheme)
	}
}
