package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 AgentKit 守护进程在启动阶段需要加载的全部配置。
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Keys    KeysConfig    `json:"keys" yaml:"keys"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Agent   AgentConfig   `json:"agent" yaml:"agent"`
	Chain   ChainConfig   `json:"chain" yaml:"chain"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Alerts  AlertsConfig  `json:"alerts" yaml:"alerts"`
}

// ServerConfig 控制 HTTP 服务的监听地址与超时。
type ServerConfig struct {
	Address                  string `json:"address" yaml:"address"`
	ReadHeaderTimeoutSeconds int    `json:"read_header_timeout_seconds" yaml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	MaxBodyBytes             int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
	InitializeTimeoutSeconds int    `json:"initialize_timeout_seconds" yaml:"initialize_timeout_seconds"`
}

// KeysConfig 描述会话密钥的获取方式。
type KeysConfig struct {
	// Strategy 取值 derived 或 generated。
	Strategy       string `json:"strategy" yaml:"strategy"`
	DeriveURL      string `json:"derive_url" yaml:"derive_url"`
	DerivePath     string `json:"derive_path" yaml:"derive_path"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// LLMConfig 配置大模型接口及会话默认参数。
type LLMConfig struct {
	Provider           string  `json:"provider" yaml:"provider"`
	BaseURL            string  `json:"base_url" yaml:"base_url"`
	DefaultModel       string  `json:"default_model" yaml:"default_model"`
	DefaultTemperature float64 `json:"default_temperature" yaml:"default_temperature"`
	TimeoutSeconds     int     `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// AgentConfig 控制推理循环与对话轮次。
type AgentConfig struct {
	SystemPrompt       string `json:"system_prompt" yaml:"system_prompt"`
	MaxSteps           int    `json:"max_steps" yaml:"max_steps"`
	TurnTimeoutSeconds int    `json:"turn_timeout_seconds" yaml:"turn_timeout_seconds"`
	// SerializeTurns 为 nil 时默认串行执行对话轮次。
	SerializeTurns *bool `json:"serialize_turns" yaml:"serialize_turns"`
}

// ChainConfig 描述链类型以及链上状态缓存。
type ChainConfig struct {
	// Type 取值 solana 或 evm，同时决定密钥算法。
	Type                  string      `json:"type" yaml:"type"`
	StatusCacheTTLSeconds int         `json:"status_cache_ttl_seconds" yaml:"status_cache_ttl_seconds"`
	Cache                 CacheConfig `json:"cache" yaml:"cache"`
}

// CacheConfig 选择缓存驱动。
type CacheConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig 描述 Redis 的连接参数。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level       string      `json:"level" yaml:"level"`
	Format      string      `json:"format" yaml:"format"`
	OutputPaths []string    `json:"output_paths" yaml:"output_paths"`
	Audit       AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig 控制审计日志。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig 控制 /metrics 端点。Address 非空时额外启动独立的指标监听。
type MetricsConfig struct {
	Enabled *bool  `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
}

// AlertsConfig 控制初始化失败等严重错误的告警渠道。
type AlertsConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

const (
	StrategyDerived   = "derived"
	StrategyGenerated = "generated"

	ChainSolana = "solana"
	ChainEVM    = "evm"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

const (
	defaultAddress      = ":8000"
	defaultDeriveURL    = "http://127.0.0.1:1100"
	defaultDerivePath   = "signing-server"
	defaultModel        = "gpt-4o-mini"
	defaultTemperature  = 0.7
	defaultSystemPrompt = "You are a helpful agent that can interact onchain using the wallet tools available to you. " +
		"Be concise and helpful with your responses."
)

// Default 返回未提供配置文件时使用的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// Load 解析指定路径的配置文件，按扩展名选择 JSON 或 YAML。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置失败: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// ApplyEnv 使用环境变量覆盖部分配置，lookup 通常为 os.LookupEnv。
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if raw, ok := lookup("PORT"); ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT 环境变量无效: %q", raw)
		}
		host, _, splitErr := net.SplitHostPort(c.Server.Address)
		if splitErr != nil {
			host = ""
		}
		c.Server.Address = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if level, ok := lookup("AGENTKIT_LOG_LEVEL"); ok && strings.TrimSpace(level) != "" {
		c.Log.Level = strings.TrimSpace(level)
	}
	return nil
}

// Validate 检查配置取值是否合法。
func (c *Config) Validate() error {
	var errs []error
	switch c.Keys.Strategy {
	case StrategyDerived:
		if strings.TrimSpace(c.Keys.DeriveURL) == "" {
			errs = append(errs, errors.New("keys.derive_url 不能为空"))
		}
	case StrategyGenerated:
	default:
		errs = append(errs, fmt.Errorf("未知的密钥策略: %s", c.Keys.Strategy))
	}
	switch c.Chain.Type {
	case ChainSolana, ChainEVM:
	default:
		errs = append(errs, fmt.Errorf("未知的链类型: %s", c.Chain.Type))
	}
	switch c.Chain.Cache.Driver {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if strings.TrimSpace(c.Chain.Cache.Redis.Address) == "" {
			errs = append(errs, errors.New("chain.cache.redis.address 不能为空"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知的缓存驱动: %s", c.Chain.Cache.Driver))
	}
	if c.LLM.DefaultTemperature < 0 || c.LLM.DefaultTemperature > 1 {
		errs = append(errs, errors.New("llm.default_temperature 必须位于 [0, 1]"))
	}
	if c.LLM.Provider != "openai" {
		errs = append(errs, fmt.Errorf("未知的大模型 provider: %s", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.ReadHeaderTimeoutSeconds <= 0 {
		c.Server.ReadHeaderTimeoutSeconds = 5
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.InitializeTimeoutSeconds <= 0 {
		c.Server.InitializeTimeoutSeconds = 30
	}

	if c.Keys.Strategy == "" {
		c.Keys.Strategy = StrategyDerived
	}
	if c.Keys.Strategy == StrategyDerived && c.Keys.DeriveURL == "" {
		c.Keys.DeriveURL = defaultDeriveURL
	}
	if c.Keys.DerivePath == "" {
		c.Keys.DerivePath = defaultDerivePath
	}
	if c.Keys.TimeoutSeconds <= 0 {
		c.Keys.TimeoutSeconds = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = defaultModel
	}
	if c.LLM.DefaultTemperature == 0 {
		c.LLM.DefaultTemperature = defaultTemperature
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}

	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = defaultSystemPrompt
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 10
	}
	if c.Agent.TurnTimeoutSeconds <= 0 {
		c.Agent.TurnTimeoutSeconds = 120
	}
	if c.Agent.SerializeTurns == nil {
		serialize := true
		c.Agent.SerializeTurns = &serialize
	}

	c.Chain.Type = strings.ToLower(strings.TrimSpace(c.Chain.Type))
	if c.Chain.Type == "" {
		c.Chain.Type = ChainSolana
	}
	if c.Chain.StatusCacheTTLSeconds <= 0 {
		c.Chain.StatusCacheTTLSeconds = 5
	}
	if c.Chain.Cache.Driver == "" {
		c.Chain.Cache.Driver = CacheMemory
	}
	if c.Chain.Cache.Redis.Prefix == "" {
		c.Chain.Cache.Redis.Prefix = "agentkit:chain:"
	}

	if c.Log.Audit.Enabled && c.Log.Audit.Path != "" && !filepath.IsAbs(c.Log.Audit.Path) {
		c.Log.Audit.Path = filepath.Join(baseDir, c.Log.Audit.Path)
	}

	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
}

// Timeout 返回派生密钥请求的超时时间。
func (c KeysConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout 返回调用大模型的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TurnTimeout 返回单轮对话的超时时间。
func (c AgentConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// StatusCacheTTL 返回链上状态缓存的有效期。
func (c ChainConfig) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSeconds) * time.Second
}

// KeyScheme 返回链类型对应的密钥算法。
func (c ChainConfig) KeyScheme() string {
	if c.Type == ChainEVM {
		return "secp256k1"
	}
	return "ed25519"
}

// InitializeTimeout 返回会话初始化的整体超时时间。
func (c ServerConfig) InitializeTimeout() time.Duration {
	return time.Duration(c.InitializeTimeoutSeconds) * time.Second
}

// ShutdownTimeout 返回优雅关闭的等待时间。
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ReadHeaderTimeout 返回读取请求头的超时时间。
func (c ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second
}
