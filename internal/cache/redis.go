package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/airticketing/config"
	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// AcquireFlightLock serializes seat-map mutations per flight. The TTL
// bounds how long a crashed holder can block the flight.
func (c *RedisCache) AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, flightLockKey(flightID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseFlightLock(ctx context.Context, flightID int64) error {
	return c.client.Del(ctx, flightLockKey(flightID)).Err()
}

// MarkNotified records an idempotency key for (entity, kind) and reports
// whether this caller was first. A later caller gets false and skips the
// duplicate send.
func (c *RedisCache) MarkNotified(ctx context.Context, entityID int64, kind string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, notifyKey(entityID, kind), "sent", ttl).Result()
}

func flightsKey() string {
	return "cache:flights"
}

func flightLockKey(flightID int64) string {
	return fmt.Sprintf("lock:flight:%d", flightID)
}

func notifyKey(entityID int64, kind string) string {
	return fmt.Sprintf("notify:%d:%s", entityID, kind)
}
