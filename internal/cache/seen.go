package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocknews/newsbot/internal/models"
)

// SeenCache remembers DedupKeys across scrape runs
type SeenCache interface {
	IsSeen(ctx context.Context, key models.DedupKey) (bool, error)
	MarkSeen(ctx context.Context, key models.DedupKey, ttl time.Duration) error
}

// RedisSeenCache stores keys as "<prefix><key> = 1" with an expiry
type RedisSeenCache struct {
	client *redis.Client
	prefix string
}

var _ SeenCache = (*RedisSeenCache)(nil)

// NewRedisSeenCache connects to redisURL and verifies the connection
func NewRedisSeenCache(ctx context.Context, redisURL string) (*RedisSeenCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSeenCacheFromClient(client), nil
}

func NewRedisSeenCacheFromClient(client *redis.Client) *RedisSeenCache {
	return &RedisSeenCache{client: client, prefix: "newsbot:seen:"}
}

func (r *RedisSeenCache) Close() error {
	return r.client.Close()
}

func (r *RedisSeenCache) IsSeen(ctx context.Context, key models.DedupKey) (bool, error) {
	exists, err := r.client.Exists(ctx, r.prefix+string(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}
	return exists > 0, nil
}

func (r *RedisSeenCache) MarkSeen(ctx context.Context, key models.DedupKey, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+string(key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// MemorySeenCache is the in-process fallback when no Redis is configured
type MemorySeenCache struct {
	mu      sync.Mutex
	entries map[models.DedupKey]time.Time
	now     func() time.Time
}

var _ SeenCache = (*MemorySeenCache)(nil)

func NewMemorySeenCache() *MemorySeenCache {
	return &MemorySeenCache{
		entries: make(map[models.DedupKey]time.Time),
		now:     time.Now,
	}
}

func (m *MemorySeenCache) IsSeen(_ context.Context, key models.DedupKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !expiresAt.IsZero() && !m.now().Before(expiresAt) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// MarkSeen records key. A non-positive ttl never expires.
func (m *MemorySeenCache) MarkSeen(_ context.Context, key models.DedupKey, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = expiresAt
	return nil
}
