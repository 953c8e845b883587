package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesOriginalDeployment(t *testing.T) {
	cfg := Default()

	if cfg.Server.Address != ":8000" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Keys.Strategy != StrategyDerived || cfg.Keys.DeriveURL != "http://127.0.0.1:1100" || cfg.Keys.DerivePath != "signing-server" {
		t.Fatalf("unexpected keys config: %+v", cfg.Keys)
	}
	if cfg.LLM.DefaultModel != "gpt-4o-mini" || cfg.LLM.DefaultTemperature != 0.7 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Chain.Type != ChainSolana || cfg.Chain.KeyScheme() != "ed25519" {
		t.Fatalf("unexpected chain defaults: %+v", cfg.Chain)
	}
	if cfg.Agent.SerializeTurns == nil || !*cfg.Agent.SerializeTurns {
		t.Fatalf("turns must be serialized by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentkit.yaml")
	content := `
server:
  address: "127.0.0.1:9000"
keys:
  strategy: generated
chain:
  type: EVM
  cache:
    driver: none
agent:
  serialize_turns: false
  turn_timeout_seconds: 7
log:
  audit:
    enabled: true
    path: logs/audit.log
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Keys.Strategy != StrategyGenerated || cfg.Keys.DeriveURL != "" {
		t.Fatalf("generated strategy must not get a derive url: %+v", cfg.Keys)
	}
	if cfg.Chain.Type != ChainEVM || cfg.Chain.KeyScheme() != "secp256k1" {
		t.Fatalf("unexpected chain: %+v", cfg.Chain)
	}
	if *cfg.Agent.SerializeTurns {
		t.Fatalf("serialize_turns=false must be kept")
	}
	if cfg.Agent.TurnTimeout() != 7*time.Second {
		t.Fatalf("unexpected turn timeout: %s", cfg.Agent.TurnTimeout())
	}
	if cfg.Log.Audit.Path != filepath.Join(dir, "logs/audit.log") {
		t.Fatalf("audit path must be resolved against config dir: %s", cfg.Log.Audit.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentkit.json")
	if err := os.WriteFile(path, []byte(`{"llm":{"default_model":"gpt-4o","default_temperature":0.2}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.DefaultModel != "gpt-4o" || cfg.LLM.DefaultTemperature != 0.2 {
		t.Fatalf("unexpected llm: %+v", cfg.LLM)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyEnvPort(t *testing.T) {
	cfg := Default()
	env := map[string]string{"PORT": "9100", "AGENTKIT_LOG_LEVEL": "debug"}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Server.Address != ":9100" {
		t.Fatalf("unexpected address: %s", cfg.Server.Address)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected level: %s", cfg.Log.Level)
	}

	env["PORT"] = "not-a-port"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg := Default()
	cfg.Keys.Strategy = "hsm"
	cfg.Chain.Type = "cosmos"
	cfg.Chain.Cache.Driver = CacheRedis
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
