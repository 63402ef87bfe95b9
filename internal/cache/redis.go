package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kgrenier/indicator-pipeline/internal/models"
)

// ErrMiss is returned when no cached row exists for the requested pair
var ErrMiss = errors.New("cache miss")

// Client caches the latest indicator row per (symbol, timeframe) pair so the
// API can serve it without touching PostgreSQL between refreshes.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a Redis cache client and verifies connectivity
func New(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func latestKey(symbol, timeframe string) string {
	return fmt.Sprintf("indicators:latest:%s:%s", symbol, timeframe)
}

// SetLatest stores the most recent indicator row for a pair
func (c *Client) SetLatest(ctx context.Context, symbol, timeframe string, row *models.IndicatorRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal indicator row: %w", err)
	}

	if err := c.rdb.Set(ctx, latestKey(symbol, timeframe), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache indicator row: %w", err)
	}
	return nil
}

// GetLatest retrieves the cached latest indicator row, or ErrMiss
func (c *Client) GetLatest(ctx context.Context, symbol, timeframe string) (*models.IndicatorRow, error) {
	data, err := c.rdb.Get(ctx, latestKey(symbol, timeframe)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached indicator row: %w", err)
	}

	var row models.IndicatorRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached indicator row: %w", err)
	}
	return &row, nil
}

// Invalidate drops the cached row for a pair
func (c *Client) Invalidate(ctx context.Context, symbol, timeframe string) error {
	return c.rdb.Del(ctx, latestKey(symbol, timeframe)).Err()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
