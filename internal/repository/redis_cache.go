package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garagehub/billing-service/internal/domain"
	"github.com/garagehub/billing-service/pkg/logger"
)

const (
	accountKeyPrefix = "billing:account:"
	accountCacheTTL  = 5 * time.Minute
)

// RedisCache caches account billing snapshots. A miss or a Redis failure is
// never an error for the caller; the source of truth is Postgres.
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis", "addr", addr)
	return &RedisCache{client: client, log: log}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetAccount returns the cached account or nil on a miss.
func (c *RedisCache) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	data, err := c.client.Get(ctx, accountKeyPrefix+accountID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: failed to get account: %w", err)
	}

	var acct domain.Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("cache: failed to unmarshal account: %w", err)
	}
	return &acct, nil
}

// SetAccount caches an account snapshot.
func (c *RedisCache) SetAccount(ctx context.Context, acct *domain.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal account: %w", err)
	}

	if err := c.client.Set(ctx, accountKeyPrefix+acct.ID, data, accountCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache: failed to set account: %w", err)
	}
	return nil
}

// InvalidateAccount drops the cached snapshot after a mutation.
func (c *RedisCache) InvalidateAccount(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, accountKeyPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("cache: failed to invalidate account: %w", err)
	}
	return nil
}
