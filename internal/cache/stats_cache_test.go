package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func setupStatsCache(t *testing.T, ttl time.Duration) (*StatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStatsCache(client, ttl), mr
}

func sampleStats() domain.OrderStats {
	return domain.OrderStats{
		TotalOrders:       4,
		TotalRevenue:      decimal.RequireFromString("102.00"),
		PendingOrders:     1,
		AverageOrderValue: decimal.RequireFromString("25.50"),
	}
}

func TestStatsCache_MissSetGet(t *testing.T) {
	cache, mr := setupStatsCache(t, 30*time.Second)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, sampleStats()))
	assert.True(t, mr.Exists(StatsKey))
	assert.Equal(t, 30*time.Second, mr.TTL(StatsKey))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), got.TotalOrders)
	assert.True(t, got.TotalRevenue.Equal(decimal.NewFromInt(102)))
	assert.True(t, got.AverageOrderValue.Equal(decimal.RequireFromString("25.5")))
}

func TestStatsCache_ExpiresAndInvalidates(t *testing.T) {
	cache, mr := setupStatsCache(t, 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleStats()))
	assert.Equal(t, defaultStatsTTL, mr.TTL(StatsKey))

	mr.FastForward(2 * time.Minute)
	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, sampleStats()))
	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists(StatsKey))
}

func TestStatsCache_CorruptedPayload(t *testing.T) {
	cache, mr := setupStatsCache(t, time.Minute)
	require.NoError(t, mr.Set(StatsKey, "not-json"))

	_, ok, err := cache.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStatsCache_ServerDown(t *testing.T) {
	cache, mr := setupStatsCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))

	mr.Close()
	_, _, err := cache.Get(ctx)
	assert.Error(t, err)
	assert.Error(t, cache.Ping(ctx))
}
