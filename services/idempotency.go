package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultIdempotencyTTL = 24 * time.Hour

const pendingMarker = "pending"

// IdempotencyStore remembers which order an Idempotency-Key produced, so a
// retried checkout returns the first order instead of placing a second one.
type IdempotencyStore interface {
	// Begin claims key. It returns the order id of a finished earlier attempt,
	// 0 when the caller now owns the key, or ErrConflict while another attempt
	// with the same key is still running.
	Begin(ctx context.Context, key string) (uint, error)
	Complete(ctx context.Context, key string, orderID uint) error
	// Abandon drops a claim whose attempt failed, so the key can be retried.
	Abandon(ctx context.Context, key string) error
}

type memoryEntry struct {
	orderID uint
	expires time.Time
}

// MemoryIdempotency is the single-process store used when no redis is configured.
type MemoryIdempotency struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryIdempotency{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryIdempotency) Begin(_ context.Context, key string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		if e.orderID == 0 {
			return 0, conflictErr("request with idempotency key %q is still in progress", key)
		}
		return e.orderID, nil
	}
	m.entries[key] = memoryEntry{expires: now.Add(m.ttl)}
	return 0, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, orderID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{orderID: orderID, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryIdempotency) Abandon(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisIdempotency shares idempotency keys between API instances.
type RedisIdempotency struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisIdempotency{client: client, prefix: "table_orders:idem:", ttl: ttl}
}

func (r *RedisIdempotency) Begin(ctx context.Context, key string) (uint, error) {
	k := r.prefix + key
	ok, err := r.client.SetNX(ctx, k, pendingMarker, r.ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return 0, nil
	}

	val, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return r.Begin(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return 0, conflictErr("request with idempotency key %q is still in progress", key)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency key %q: %w", key, err)
	}
	return uint(id), nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key string, orderID uint) error {
	return r.client.Set(ctx, r.prefix+key, strconv.FormatUint(uint64(orderID), 10), r.ttl).Err()
}

func (r *RedisIdempotency) Abandon(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
