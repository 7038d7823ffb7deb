package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations tracks token ids (jti) that must no longer be accepted.
// Entries only need to live until the token would have expired anyway.
//
// Revoke is a check-and-set: it reports first=false when jti was already
// revoked, so exactly one of several concurrent callers wins. A ttl of zero
// or less records nothing and reports first=true.
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) (first bool, err error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations is a process-local Revocations. It is the default when
// no Redis URL is configured and is only correct for a single replica.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations returns an empty in-memory list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}
	if _, ok := m.entries[jti]; ok {
		return false, nil
	}
	m.entries[jti] = now.Add(ttl)
	return true, nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[jti]
	return ok && exp.After(m.now()), nil
}

// RedisRevocations stores revoked ids as expiring keys so every replica
// sees a logout.
type RedisRevocations struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocations wraps an existing client.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "revoked:"}
}

// NewRedisClient builds a client from a redis:// URL or a bare host:port.
func NewRedisClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	return redis.NewClient(opts), nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	return r.client.SetNX(ctx, r.prefix+jti, 1, ttl).Result()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
