package settings

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var providers = []string{"gemini", "groq"}

func setupRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client), mr
}

func TestSettings_Defaults(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), 0, providers).For("u1")

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{Provider: "gemini", Credits: 10}, snap)
}

func TestSettings_ConsumeCreditStopsAtZero(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), 2, providers).For("u1")

	left, err := s.ConsumeCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = s.ConsumeCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	left, err = s.ConsumeCredit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestSettings_ConcurrentConsumeLosesNoCredit(t *testing.T) {
	redisKV, _ := setupRedisKV(t)
	kvs := map[string]KV{"memory": NewMemoryKV(), "redis": redisKV}

	for name, kv := range kvs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewStore(kv, 20, providers).For("u1")

			var wg sync.WaitGroup
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.ConsumeCredit(ctx)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			left, err := s.Credits(ctx)
			require.NoError(t, err)
			assert.Equal(t, 8, left)
		})
	}
}

func TestRedisKV_DecrFloor(t *testing.T) {
	ctx := context.Background()
	kv, mr := setupRedisKV(t)

	n, err := kv.DecrFloor(ctx, "k", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = kv.DecrFloor(ctx, "k", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, mr.Set("k", "junk"))
	n, err = kv.DecrFloor(ctx, "k", 5)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, mr.TTL("k") > 0)
}

func TestSettings_Provider(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), 0, providers).For("u1")

	require.NoError(t, s.SetProvider(ctx, "groq"))
	p, err := s.Provider(ctx)
	require.NoError(t, err)
	assert.Equal(t, "groq", p)

	assert.ErrorIs(t, s.SetProvider(ctx, "openai"), ErrInvalidProvider)
}

func TestSettings_OwnersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryKV(), 0, providers)

	_, err := store.For("u1").ConsumeCredit(ctx)
	require.NoError(t, err)

	c, err := store.For("u2").Credits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, c)
}

func TestRedisKV(t *testing.T) {
	ctx := context.Background()
	kv, mr := setupRedisKV(t)
	s := NewStore(kv, 0, providers).For("u1")

	_, err := s.ConsumeCredit(ctx)
	require.NoError(t, err)

	got, err := mr.Get(CreditsPrefix + "u1")
	require.NoError(t, err)
	assert.Equal(t, "9", got)

	t.Run("corrupt value reads as default", func(t *testing.T) {
		require.NoError(t, mr.Set(CreditsPrefix+"u1", "lots"))
		c, err := s.Credits(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, c)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := kv.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("surfaces connection errors", func(t *testing.T) {
		mr.SetError("boom")
		defer mr.SetError("")
		_, _, err := kv.Get(ctx, "any")
		assert.Error(t, err)
	})
}

func TestRefillScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()
	kv, mr := setupRedisKV(t)
	store := NewStore(kv, 0, providers)

	for _, owner := range []string{"u1", "u2", "u3"} {
		_, err := store.For(owner).ConsumeCredit(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, store.For("u1").SetProvider(ctx, "groq"))

	n := NewRefillScheduler(kv, "").RunOnce(ctx)
	assert.Equal(t, 3, n)

	c, err := store.For("u1").Credits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, c)
	assert.True(t, mr.Exists(keyPrefix+"provider:u1"))
}

func TestRefillScheduler_MemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewStore(kv, 0, providers)
	_, err := store.For("u1").ConsumeCredit(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, NewRefillScheduler(kv, DefaultRefillSpec).RunOnce(ctx))
}

func TestRefillScheduler_RejectsBadSpec(t *testing.T) {
	s := NewRefillScheduler(NewMemoryKV(), "not a cron spec")
	assert.Error(t, s.Start())
	s.Stop()
}
