package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// DefaultAuthority is the loopback derivation service.
	DefaultAuthority = "http://127.0.0.1:1100"
	// DefaultDerivePath is the derivation label of the signing key.
	DefaultDerivePath = "signing-server"

	defaultDeriveTimeout = 10 * time.Second
	maxDerivedBytes      = 4096
)

// ErrAuthority marks failures of the derivation authority.
var ErrAuthority = errors.New("derivation authority failed")

// Provisioner produces fresh key material for a new session.
type Provisioner interface {
	Provision(ctx context.Context) (*Material, error)
}

// DerivedConfig configures a DerivedProvisioner.
type DerivedConfig struct {
	Authority  string
	Path       string
	Scheme     Scheme
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DerivedProvisioner requests seed bytes from a loopback derivation authority.
// It never falls back to a generated key.
type DerivedProvisioner struct {
	endpoint   string
	scheme     Scheme
	timeout    time.Duration
	httpClient *http.Client
}

// NewDerivedProvisioner validates that the authority is a loopback HTTP URL.
func NewDerivedProvisioner(cfg DerivedConfig) (*DerivedProvisioner, error) {
	authority := strings.TrimRight(strings.TrimSpace(cfg.Authority), "/")
	if authority == "" {
		authority = DefaultAuthority
	}
	parsed, err := url.Parse(authority)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation authority url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("derivation authority must be http(s), got %q", parsed.Scheme)
	}
	if !isLoopback(parsed.Hostname()) {
		return nil, fmt.Errorf("derivation authority must be a loopback address, got %q", parsed.Hostname())
	}

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = SchemeEd25519
	}
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultDerivePath
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDeriveTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	endpoint := fmt.Sprintf("%s/derive/%s?path=%s", authority, scheme, url.QueryEscape(path))
	return &DerivedProvisioner{endpoint: endpoint, scheme: scheme, timeout: timeout, httpClient: client}, nil
}

// Endpoint returns the derivation URL, which carries no secret.
func (p *DerivedProvisioner) Endpoint() string {
	return p.endpoint
}

// Provision fetches raw key bytes and builds the keypair from the first 32.
func (p *DerivedProvisioner) Provision(ctx context.Context) (*Material, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrAuthority, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthority, ctxErr)
		}
		return nil, fmt.Errorf("%w: request failed: %v", ErrAuthority, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDerivedBytes))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrAuthority, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDerivedBytes))
	defer wipe(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrAuthority, err)
	}
	if len(raw) < SeedSize {
		return nil, fmt.Errorf("%w: expected at least %d key bytes, got %d", ErrAuthority, SeedSize, len(raw))
	}

	material, err := FromSeed(p.scheme, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthority, err)
	}
	return material, nil
}

// GeneratedProvisioner creates a random keypair without external services.
type GeneratedProvisioner struct {
	scheme Scheme
	rand   io.Reader
}

// NewGeneratedProvisioner returns a provisioner backed by crypto/rand.
func NewGeneratedProvisioner(scheme Scheme) (*GeneratedProvisioner, error) {
	if scheme == "" {
		scheme = SchemeEd25519
	}
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}
	return &GeneratedProvisioner{scheme: scheme, rand: rand.Reader}, nil
}

// Provision generates a new keypair on every call.
func (p *GeneratedProvisioner) Provision(ctx context.Context) (*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch p.scheme {
	case SchemeEd25519:
		seed := make([]byte, ed25519.SeedSize)
		defer wipe(seed)
		if _, err := io.ReadFull(p.rand, seed); err != nil {
			return nil, fmt.Errorf("generate ed25519 seed: %w", err)
		}
		return FromSeed(p.scheme, seed)
	case SchemeSecp256k1:
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate secp256k1 key: %w", err)
		}
		seed := crypto.FromECDSA(key)
		defer wipe(seed)
		return FromSeed(p.scheme, seed)
	default:
		return nil, fmt.Errorf("unsupported key scheme %q", p.scheme)
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var (
	_ Provisioner = (*DerivedProvisioner)(nil)
	_ Provisioner = (*GeneratedProvisioner)(nil)
)
