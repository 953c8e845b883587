package web3

import (
	"context"
	"sync"
	"time"
)

// StatusCache stores recent NetworkStatus snapshots.
type StatusCache interface {
	GetStatus(ctx context.Context, key string) (NetworkStatus, bool, error)
	SetStatus(ctx context.Context, key string, status NetworkStatus, ttl time.Duration) error
}

// MemoryCache is a process-local StatusCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	status  NetworkStatus
	expires time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// GetStatus returns a non-expired entry.
func (m *MemoryCache) GetStatus(_ context.Context, key string) (NetworkStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return NetworkStatus{}, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return NetworkStatus{}, false, nil
	}
	return entry.status, true, nil
}

// SetStatus stores status for ttl. A non-positive ttl is a no-op.
func (m *MemoryCache) SetStatus(_ context.Context, key string, status NetworkStatus, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{status: status, expires: m.now().Add(ttl)}
	return nil
}

// CachedClient serves Status from a StatusCache and delegates everything else.
// Cache failures degrade to direct reads.
type CachedClient struct {
	Client
	cache StatusCache
	key   string
	ttl   time.Duration
}

// NewCachedClient wraps client. key scopes entries to one endpoint; callers
// must not derive it from a credential-bearing URL.
func NewCachedClient(client Client, cache StatusCache, key string, ttl time.Duration) *CachedClient {
	if key == "" {
		key = string(client.Chain())
	}
	return &CachedClient{Client: client, cache: cache, key: key, ttl: ttl}
}

// Status returns the cached snapshot when fresh.
func (c *CachedClient) Status(ctx context.Context) (NetworkStatus, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.Client.Status(ctx)
	}
	if status, ok, err := c.cache.GetStatus(ctx, c.key); err == nil && ok {
		return status, nil
	}
	status, err := c.Client.Status(ctx)
	if err != nil {
		return NetworkStatus{}, err
	}
	_ = c.cache.SetStatus(ctx, c.key, status, c.ttl)
	return status, nil
}

var (
	_ StatusCache = (*MemoryCache)(nil)
	_ Client      = (*CachedClient)(nil)
)
