package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is a cached lookup. Found=false caches the absence of a row.
type Entry struct {
	Value string `json:"v"`
	Found bool   `json:"f"`
}

type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, e Entry)
	Delete(ctx context.Context, key string)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (Entry, bool) { return Entry{}, false }
func (NopCache) Set(context.Context, string, Entry) {}
func (NopCache) Delete(context.Context, string) {}

// MemoryCache is per process. Other instances see a write after the TTL.
type MemoryCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	entry   Entry
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, items: map[string]memoryItem{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	if !c.now().Before(it.expires) {
		delete(c.items, key)
		return Entry{}, false
	}
	return it.entry, true
}

func (c *MemoryCache) Set(_ context.Context, key string, e Entry) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[key] = memoryItem{entry: e, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// RedisCache shares cached settings across instances; Set on any instance
// invalidates the key for all of them.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "promptmarket:settings:", log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("settings cache get failed", "key", key, "error", err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

func (c *RedisCache) Set(ctx context.Context, key string, e Entry) {
	if c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("settings cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn("settings cache invalidate failed", "key", key, "error", err)
	}
}
