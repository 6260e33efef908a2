package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the small key-value persistence behind per-owner settings.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// DecrFloor atomically decrements the integer at key, never below zero. A
	// missing or non-integer value counts as initial. It returns the new value.
	DecrFloor(ctx context.Context, key string, initial int) (int, error)
}

// Resetter deletes every key with the given prefix.
type Resetter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// MemoryKV keeps settings in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) DecrFloor(_ context.Context, key string, initial int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := strconv.Atoi(m.data[key])
	if err != nil {
		n = initial
	}
	n--
	if n < 0 {
		n = 0
	}
	m.data[key] = strconv.Itoa(n)
	return n, nil
}

func (m *MemoryKV) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

const settingsTTL = 90 * 24 * time.Hour

// RedisKV stores settings in Redis.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, settingsTTL).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

var decrFloorScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]))
if n == nil then
	n = tonumber(ARGV[1])
end
n = n - 1
if n < 0 then
	n = 0
end
redis.call("SET", KEYS[1], n, "PX", ARGV[2])
return n
`)

func (r *RedisKV) DecrFloor(ctx context.Context, key string, initial int) (int, error) {
	n, err := decrFloorScript.Run(ctx, r.client, []string{key}, initial, settingsTTL.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement %s: %w", key, err)
	}
	return n, nil
}

// DeletePrefix scans for prefix* and deletes the matches in batches.
func (r *RedisKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var cursor uint64
	total := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return total, fmt.Errorf("failed to scan %s*: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, fmt.Errorf("failed to delete keys: %w", err)
			}
			total += int(n)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
