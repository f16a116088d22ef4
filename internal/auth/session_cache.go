package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desk-kit/support-desk/internal/domain"
)

// ProfileCache is a short-lived cache of user profiles keyed by user id.
// Entries are valid only for the session identity they were loaded under:
// callers must Invalidate on logout and on any claim/profile mismatch.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.User, bool)
	Set(ctx context.Context, user *domain.User)
	Invalidate(ctx context.Context, userID string)
}

const profileKeyPrefix = "profile:"

// RedisProfileCache stores profiles in Redis with a TTL.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache builds the cache. A non-positive ttl falls back
// to 60 seconds.
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*domain.User, bool) {
	raw, err := c.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		return nil, false
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *RedisProfileCache) Set(ctx context.Context, user *domain.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	c.client.Set(ctx, profileKeyPrefix+user.ID, raw, c.ttl)
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userID string) {
	c.client.Del(ctx, profileKeyPrefix+userID)
}

// MemoryProfileCache is an in-process cache for tests and single-node use.
type MemoryProfileCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	user      domain.User
	expiresAt time.Time
}

// NewMemoryProfileCache builds the cache with the given entry TTL.
func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryProfileCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryProfileCache) Get(ctx context.Context, userID string) (*domain.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return nil, false
	}
	user := entry.user
	return &user, true
}

func (c *MemoryProfileCache) Set(ctx context.Context, user *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[user.ID] = memoryEntry{user: *user, expiresAt: time.Now().Add(c.ttl)}
}

func (c *MemoryProfileCache) Invalidate(ctx context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}
