// Package idempotency provides run-once guards for operations that must not
// repeat, such as closing a billing period twice.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard marks operations as done exactly once. Acquire returns true for the
// first caller of a key and false for every later caller until the entry
// expires. A zero TTL means the entry never expires.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Done reports whether the key has already been acquired.
	Done(ctx context.Context, key string) (bool, error)
}

// FormatClosingKey builds the guard key for a billing period close.
func FormatClosingKey(period string) string {
	return fmt.Sprintf("closing:%s", period)
}

// --- MemoryGuard ---

// MemoryGuard is an in-memory Guard with TTL support. Suitable for testing
// and single-instance deployments.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryGuard creates a new in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		entries: make(map[string]time.Time),
	}
}

// Acquire claims the key. Only the first caller gets true.
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.alive(key) {
		return false, nil
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	g.entries[key] = expiresAt
	return true, nil
}

// Done reports whether the key is currently claimed.
func (g *MemoryGuard) Done(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alive(key), nil
}

// alive checks and lazily evicts an expired entry. Caller holds the lock.
func (g *MemoryGuard) alive(key string) bool {
	expiresAt, exists := g.entries[key]
	if !exists {
		return false
	}
	if !expiresAt.IsZero() && time.Now().After(expiresAt) {
		delete(g.entries, key)
		return false
	}
	return true
}

// Len returns the number of entries (including expired ones). For testing.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// --- RedisGuard ---

// RedisGuard is a Redis-backed Guard using SET NX, so the claim is atomic
// across engine instances.
type RedisGuard struct {
	client redis.Cmdable
}

// NewRedisGuard creates a new Redis-backed guard.
func NewRedisGuard(client redis.Cmdable) *RedisGuard {
	return &RedisGuard{client: client}
}

// Acquire claims the key with SET NX.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return ok, nil
}

// Done reports whether the key is currently claimed.
func (g *RedisGuard) Done(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

// HealthCheck pings the Redis server.
func (g *RedisGuard) HealthCheck(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
