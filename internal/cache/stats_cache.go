package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// StatsKey — ключ агрегатов статистики заказов.
const StatsKey = "oms:stats:orders"

const defaultStatsTTL = time.Minute

// StatsCache хранит агрегаты статистики в Redis в виде JSON.
type StatsCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStatsCache создаёт кэш с заданным TTL; ttl <= 0 заменяется на минуту.
func NewStatsCache(client redis.UniversalClient, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = defaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Get возвращает агрегаты; (_, false, nil) означает промах.
func (c *StatsCache) Get(ctx context.Context) (domain.OrderStats, bool, error) {
	data, err := c.client.Get(ctx, StatsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderStats{}, false, nil
	}
	if err != nil {
		return domain.OrderStats{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var stats domain.OrderStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.OrderStats{}, false, fmt.Errorf("unmarshal stats failed: %w", err)
	}
	return stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, stats domain.OrderStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats failed: %w", err)
	}
	if err := c.client.Set(ctx, StatsKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *StatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, StatsKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (c *StatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ domain.StatsCache = (*StatsCache)(nil)
