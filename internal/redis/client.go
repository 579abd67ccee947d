package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/firewx/climo/internal/types"
	"github.com/redis/go-redis/v9"
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

func decileKey(site, model string, dayOfYear, hourOfDay int) string {
	return fmt.Sprintf("deciles:%s:%s:%d:%d", site, model, dayOfYear, hourOfDay)
}

func buildKey(site, model string) string {
	return fmt.Sprintf("climo:build:%s:%s", site, model)
}

// CacheDecileRow caches a decile row for the query layer.
func (c *Client) CacheDecileRow(ctx context.Context, row *types.DecileRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal decile row: %w", err)
	}
	key := decileKey(row.Site, row.Model, row.DayOfYear, row.HourOfDay)
	return c.client.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetDecileRow retrieves a cached decile row, or nil on a cache miss.
func (c *Client) GetDecileRow(ctx context.Context, site, model string, dayOfYear, hourOfDay int) (*types.DecileRow, error) {
	data, err := c.client.Get(ctx, decileKey(site, model, dayOfYear, hourOfDay)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decile row: %w", err)
	}

	var row types.DecileRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decile row: %w", err)
	}
	return &row, nil
}

// DeleteDecileRow drops a cached decile row.
func (c *Client) DeleteDecileRow(ctx context.Context, site, model string, dayOfYear, hourOfDay int) error {
	return c.client.Del(ctx, decileKey(site, model, dayOfYear, hourOfDay)).Err()
}

// DeletePairDeciles drops every cached decile row for a station/model pair.
// Called before a rebuilt pair is re-cached, so buckets that no longer exist
// are never served stale from the cache.
func (c *Client) DeletePairDeciles(ctx context.Context, site, model string) error {
	return c.deleteMatching(ctx, fmt.Sprintf("deciles:%s:%s:*", site, model))
}

// Reset drops every cached decile row and build marker.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.deleteMatching(ctx, "deciles:*"); err != nil {
		return err
	}
	return c.deleteMatching(ctx, "climo:build:*")
}

func (c *Client) deleteMatching(ctx context.Context, pattern string) error {
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to list keys %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// BuildMarker records when a pair's distributions were last rebuilt.
type BuildMarker struct {
	RunID   string    `json:"run_id"`
	BuiltAt time.Time `json:"built_at"`
	Buckets int       `json:"buckets"`
}

// SetBuildMarker stores the build marker for a station/model pair.
func (c *Client) SetBuildMarker(ctx context.Context, site, model string, marker *BuildMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to marshal build marker: %w", err)
	}
	return c.client.Set(ctx, buildKey(site, model), data, 0).Err()
}

// GetBuildMarker retrieves the build marker for a pair, or nil if the pair
// has never been built.
func (c *Client) GetBuildMarker(ctx context.Context, site, model string) (*BuildMarker, error) {
	data, err := c.client.Get(ctx, buildKey(site, model)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build marker: %w", err)
	}

	var marker BuildMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal build marker: %w", err)
	}
	return &marker, nil
}

// DeleteBuildMarker drops the build marker for a pair.
func (c *Client) DeleteBuildMarker(ctx context.Context, site, model string) error {
	return c.client.Del(ctx, buildKey(site, model)).Err()
}
