package redis

import (
	"context"
	"net"
	"testing"
	"time"

	"AgentKit-Chain/internal/web3"

	"github.com/alicebob/miniredis/v2"
)

func TestStatusCacheRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	cache, err := NewStatusCache(ctx, Config{Address: srv.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cache.Close()

	if _, ok, err := cache.GetStatus(ctx, "solana"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := web3.NetworkStatus{Chain: web3.ChainSolana, ChainID: "genesis", Height: 42, Version: "1.18"}
	if err := cache.SetStatus(ctx, "solana", want, 5*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := cache.GetStatus(ctx, "solana")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("unexpected status: %+v", got)
	}

	if ttl := srv.TTL("test:solana"); ttl != 5*time.Second {
		t.Fatalf("expected key to expire after 5s, got %s", ttl)
	}
	srv.FastForward(6 * time.Second)
	if _, ok, err := cache.GetStatus(ctx, "solana"); err != nil || ok {
		t.Fatalf("expired entry must miss, got ok=%v err=%v", ok, err)
	}
}

func TestStatusCacheSkipsNonPositiveTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	cache, err := NewStatusCache(ctx, Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cache.Close()

	if err := cache.SetStatus(ctx, "evm", web3.NetworkStatus{Height: 1}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if keys := srv.Keys(); len(keys) != 0 {
		t.Fatalf("zero ttl must not write, found %v", keys)
	}
}

func TestStatusCacheDefaultPrefixAndCorruptEntry(t *testing.T) {
	srv := miniredis.RunT(t)
	if err := srv.Set(defaultPrefix+"evm", "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache, err := NewStatusCache(context.Background(), Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cache.Close()

	if _, _, err := cache.GetStatus(context.Background(), "evm"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestStatusCacheRequiresPassword(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireAuth("s3cret")

	if _, err := NewStatusCache(context.Background(), Config{Address: srv.Addr()}); err == nil {
		t.Fatalf("expected auth failure without password")
	}
	cache, err := NewStatusCache(context.Background(), Config{Address: srv.Addr(), Password: "s3cret"})
	if err != nil {
		t.Fatalf("new cache with password: %v", err)
	}
	_ = cache.Close()
}

func TestNewStatusCacheErrors(t *testing.T) {
	if _, err := NewStatusCache(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty address")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewStatusCache(ctx, Config{Address: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}
