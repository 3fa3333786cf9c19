package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheConfig pairs a key prefix with its TTL
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Module trees change only when a teacher edits them
	ModuleCacheConfig = CacheConfig{
		TTL:    10 * time.Minute,
		Prefix: "module:",
	}

	ClassCacheConfig = CacheConfig{
		TTL:    10 * time.Minute,
		Prefix: "class:",
	}

	// Student dashboards are recomputed after every quiz, keep them short
	ProgressCacheConfig = CacheConfig{
		TTL:    2 * time.Minute,
		Prefix: "progress:",
	}

	UserCacheConfig = CacheConfig{
		TTL:    15 * time.Minute,
		Prefix: "user:",
	}
)

// CacheHelper is a prefixed JSON view over a redis client.
// A nil client turns every write into a no-op and every read into ErrCacheNotAvailable.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{client: client, prefix: prefix}
}

// Key returns the full redis key for key
func (c *CacheHelper) Key(key string) string {
	return c.prefix + key
}

// Get loads key into dest
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}
	raw, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheNotFound
	}
	if err != nil {
		return fmt.Errorf("cache get error: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

// Delete removes keys in a single round trip
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.Key(key)
	}
	return c.client.Del(ctx, full...).Err()
}

// InvalidatePattern deletes every key matching pattern. Uses SCAN, never KEYS.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	full := c.Key(pattern)
	var keys []string
	iter := c.client.Scan(ctx, 0, full, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.ErrorContext(ctx, "Cache scan pattern error", "error", err, "pattern", full)
		return fmt.Errorf("cache scan pattern error: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	const batchSize = 100
	pipe := c.client.Pipeline()
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		pipe.Del(ctx, keys[start:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.ErrorContext(ctx, "Cache pipeline delete error", "error", err, "total_keys", len(keys))
		return fmt.Errorf("cache pipeline delete error: %w", err)
	}
	return nil
}

// CacheOrExecute is cache-aside: serve key from cache or run fetch and store its result.
// The store happens in the background so a slow redis never delays the caller.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache get error, falling back to source", "error", err, "key", c.Key(key))
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}

	if c.client != nil {
		go func() {
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := c.client.Set(storeCtx, c.Key(key), data, ttl).Err(); err != nil {
				slog.Error("Cache set error", "error", err, "key", c.Key(key))
			}
		}()
	}

	return json.Unmarshal(data, dest)
}

// CacheManager groups the helpers used by the LMS repositories
type CacheManager struct {
	client *redis.Client

	Module   *CacheHelper
	Class    *CacheHelper
	Progress *CacheHelper
	User     *CacheHelper
}

// NewCacheManager builds all helpers. client may be nil, caching is then disabled.
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:   client,
		Module:   NewCacheHelper(client, ModuleCacheConfig.Prefix),
		Class:    NewCacheHelper(client, ClassCacheConfig.Prefix),
		Progress: NewCacheHelper(client, ProgressCacheConfig.Prefix),
		User:     NewCacheHelper(client, UserCacheConfig.Prefix),
	}
}

func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
