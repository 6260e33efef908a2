package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapse-qa/synapse-backend/internal/audits/domain"
)

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	release, err := g.Acquire(ctx, "a1")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrSaveInFlight)

	other, err := g.Acquire(ctx, "new:u1")
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := g.Acquire(ctx, "a1")
	require.NoError(t, err)
	again()
}

func TestRedisGuard(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	g := NewRedisGuard(client, time.Minute)
	peer := NewRedisGuard(client, time.Minute)

	release, err := g.Acquire(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(guardPrefix+"a1"))

	_, err = peer.Acquire(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrSaveInFlight)

	release()
	assert.False(t, mr.Exists(guardPrefix+"a1"))

	t.Run("expired lock is not released by its old holder", func(t *testing.T) {
		stale, err := g.Acquire(ctx, "a2")
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		fresh, err := peer.Acquire(ctx, "a2")
		require.NoError(t, err)

		stale()
		assert.True(t, mr.Exists(guardPrefix+"a2"))
		fresh()
		assert.False(t, mr.Exists(guardPrefix+"a2"))
	})

	t.Run("redis errors surface", func(t *testing.T) {
		mr.SetError("down")
		defer mr.SetError("")
		_, err := g.Acquire(ctx, "a3")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrSaveInFlight)
	})
}
