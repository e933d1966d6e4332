package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// Client wraps Redis operations for the observation fan-out.
type Client struct {
	rdb  *redis.Client
	keep int64
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	// KeepRecent bounds the per-method recent-observation list. 0 uses 100.
	KeepRecent int `yaml:"keep_recent"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keep := int64(cfg.KeepRecent)
	if keep <= 0 {
		keep = 100
	}
	return &Client{rdb: rdb, keep: keep}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func channelKey(methodName string) string {
	return fmt.Sprintf("observations:%s", methodName)
}

func recentKey(methodName string) string {
	return fmt.Sprintf("observations:recent:%s", methodName)
}

// PublishObservation broadcasts the observation on the method's channel and
// appends it to the capped recent list. This is a write-only fan-out, not a
// read-back cache for call results.
func (c *Client) PublishObservation(ctx context.Context, obs *domain.Observation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Publish(ctx, channelKey(obs.Method), payload)
	key := recentKey(obs.Method)
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, c.keep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish observation: %w", err)
	}
	return nil
}

// RecentObservations returns up to limit recent observations for a method,
// newest first.
func (c *Client) RecentObservations(
	ctx context.Context,
	methodName string,
	limit int64,
) ([]*domain.Observation, error) {
	raw, err := c.rdb.LRange(ctx, recentKey(methodName), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	out := make([]*domain.Observation, 0, len(raw))
	for _, item := range raw {
		var obs domain.Observation
		if err := json.Unmarshal([]byte(item), &obs); err != nil {
			return nil, fmt.Errorf("invalid observation payload: %w", err)
		}
		out = append(out, &obs)
	}
	return out, nil
}
