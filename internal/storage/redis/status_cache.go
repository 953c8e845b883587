package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"AgentKit-Chain/internal/web3"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "agentkit:chain:"

// Config 描述 Redis 状态缓存的连接参数。
type Config struct {
	Address     string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// StatusCache 将链状态快照以 JSON 形式缓存在 Redis 中，供多个进程共享。
type StatusCache struct {
	client *redis.Client
	prefix string
}

// NewStatusCache 创建 Redis 缓存实例，并通过 PING 校验连通性。
func NewStatusCache(ctx context.Context, cfg Config) (*StatusCache, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &StatusCache{client: client, prefix: prefix}, nil
}

// GetStatus 读取缓存的链状态；键不存在时返回 false。
func (c *StatusCache) GetStatus(ctx context.Context, key string) (web3.NetworkStatus, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return web3.NetworkStatus{}, false, nil
		}
		return web3.NetworkStatus{}, false, fmt.Errorf("读取 Redis 缓存失败: %w", err)
	}
	var status web3.NetworkStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return web3.NetworkStatus{}, false, fmt.Errorf("解析 Redis 缓存失败: %w", err)
	}
	return status, true, nil
}

// SetStatus 写入链状态并设置过期时间，ttl 非正数时不写入。
func (c *StatusCache) SetStatus(ctx context.Context, key string, status web3.NetworkStatus, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("序列化链状态失败: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("写入 Redis 缓存失败: %w", err)
	}
	return nil
}

// Close 关闭底层连接池。
func (c *StatusCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ web3.StatusCache = (*StatusCache)(nil)
