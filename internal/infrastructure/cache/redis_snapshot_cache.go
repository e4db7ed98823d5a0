package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	appcosting "github.com/margincraft/backend/internal/application/costing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// defaultSnapshotTTL bounds staleness when an invalidation is lost
const defaultSnapshotTTL = 5 * time.Minute

// RedisConfig holds the connection settings for the cache backend
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisSnapshotCache implements the CPU snapshot cache using Redis.
// One key per company holds the whole latest-cost view.
type RedisSnapshotCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisSnapshotCacheOption is a functional option for configuring the cache
type RedisSnapshotCacheOption func(*RedisSnapshotCache)

// WithSnapshotTTL sets the snapshot expiry
func WithSnapshotTTL(ttl time.Duration) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSnapshotLogger sets the logger for the cache
func WithSnapshotLogger(logger *zap.Logger) RedisSnapshotCacheOption {
	return func(c *RedisSnapshotCache) {
		c.logger = logger
	}
}

// NewRedisSnapshotCache creates a new Redis-based snapshot cache
func NewRedisSnapshotCache(cfg RedisConfig, opts ...RedisSnapshotCacheOption) (*RedisSnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisSnapshotCache{
		client:     client,
		ownsClient: true,
		ttl:        defaultSnapshotTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisSnapshotCacheWithClient creates a cache with an existing Redis client.
// Note: The caller retains ownership of the client and is responsible for closing it.
func NewRedisSnapshotCacheWithClient(client *redis.Client, opts ...RedisSnapshotCacheOption) *RedisSnapshotCache {
	cache := &RedisSnapshotCache{
		client:     client,
		ownsClient: false,
		ttl:        defaultSnapshotTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// snapshotKey generates the cache key for a company's CPU snapshot
func (c *RedisSnapshotCache) snapshotKey(companyID uuid.UUID) string {
	return fmt.Sprintf("cpu_snapshot:%s", companyID.String())
}

// Get retrieves a company's snapshot from cache. A nil snapshot with a
// nil error is a cache miss.
func (c *RedisSnapshotCache) Get(ctx context.Context, companyID uuid.UUID) (*appcosting.CPUSnapshotResponse, error) {
	cacheKey := c.snapshotKey(companyID)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss for CPU snapshot", zap.String("company_id", companyID.String()))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to get CPU snapshot from cache",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get snapshot from cache: %w", err)
	}

	var snapshot appcosting.CPUSnapshotResponse
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.logger.Error("Failed to unmarshal CPU snapshot",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	c.logger.Debug("Cache hit for CPU snapshot", zap.String("company_id", companyID.String()))
	return &snapshot, nil
}

// Set stores a company's snapshot in cache
func (c *RedisSnapshotCache) Set(ctx context.Context, companyID uuid.UUID, snapshot *appcosting.CPUSnapshotResponse) error {
	if snapshot == nil {
		return nil
	}

	cacheKey := c.snapshotKey(companyID)

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Error("Failed to marshal CPU snapshot",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to set CPU snapshot in cache",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to set snapshot in cache: %w", err)
	}

	c.logger.Debug("Cached CPU snapshot",
		zap.String("company_id", companyID.String()),
		zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate removes a company's snapshot from cache
func (c *RedisSnapshotCache) Invalidate(ctx context.Context, companyID uuid.UUID) error {
	cacheKey := c.snapshotKey(companyID)

	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Error("Failed to invalidate CPU snapshot",
			zap.String("company_id", companyID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}

	c.logger.Debug("Invalidated CPU snapshot", zap.String("company_id", companyID.String()))
	return nil
}

// Close releases any resources held by the cache
func (c *RedisSnapshotCache) Close() error {
	// Only close client if we own it
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisSnapshotCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisSnapshotCache implements SnapshotCache
var _ appcosting.SnapshotCache = (*RedisSnapshotCache)(nil)
