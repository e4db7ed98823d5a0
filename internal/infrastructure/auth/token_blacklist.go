package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist revokes tokens ahead of their natural expiry, either one
// token at a time by JTI or device-wide when a device is deregistered.
type TokenBlacklist interface {
	// AddToBlacklist revokes a single token. ttl should match the time
	// left until the token expires on its own.
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error

	// IsBlacklisted reports whether the JTI has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// AddDeviceTokensToBlacklist records an invalidation cutoff for the
	// device. Tokens issued at or before the cutoff are rejected.
	AddDeviceTokensToBlacklist(ctx context.Context, deviceID string, ttl time.Duration) error

	// IsDeviceTokenInvalidated reports whether a token issued at
	// tokenIssuedAt falls under the device's invalidation cutoff.
	IsDeviceTokenInvalidated(ctx context.Context, deviceID string, tokenIssuedAt time.Time) (bool, error)
}

const blacklistKeyPrefix = "token:blacklist:"

// RedisTokenBlacklist shares revocations across API instances. Entries
// carry a TTL so the keyspace cannot grow past the token lifetime.
type RedisTokenBlacklist struct {
	client    *redis.Client
	keyPrefix string
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// RedisTokenBlacklistConfig identifies the Redis instance holding
// revocation state.
type RedisTokenBlacklistConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisTokenBlacklist connects to Redis and verifies the connection.
func NewRedisTokenBlacklist(cfg RedisTokenBlacklistConfig) (*RedisTokenBlacklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis for token blacklist: %w", err)
	}

	return NewRedisTokenBlacklistWithClient(client), nil
}

// NewRedisTokenBlacklistWithClient wraps an existing Redis client.
func NewRedisTokenBlacklistWithClient(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client, keyPrefix: blacklistKeyPrefix}
}

func (b *RedisTokenBlacklist) jtiKey(jti string) string {
	return b.keyPrefix + "jti:" + jti
}

func (b *RedisTokenBlacklist) deviceKey(deviceID string) string {
	return b.keyPrefix + "device:" + deviceID
}

func (b *RedisTokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, b.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return exists > 0, nil
}

func (b *RedisTokenBlacklist) AddDeviceTokensToBlacklist(ctx context.Context, deviceID string, ttl time.Duration) error {
	cutoff := time.Now().Unix()
	if err := b.client.Set(ctx, b.deviceKey(deviceID), cutoff, ttl).Err(); err != nil {
		return fmt.Errorf("invalidate device tokens: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsDeviceTokenInvalidated(ctx context.Context, deviceID string, tokenIssuedAt time.Time) (bool, error) {
	value, err := b.client.Get(ctx, b.deviceKey(deviceID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check device invalidation: %w", err)
	}

	cutoff, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse device invalidation cutoff: %w", err)
	}
	return tokenIssuedAt.Unix() <= cutoff, nil
}

// Close releases the Redis client.
func (b *RedisTokenBlacklist) Close() error {
	return b.client.Close()
}

// InMemoryTokenBlacklist keeps revocation state in process memory. It is
// for tests and single-instance development setups only.
type InMemoryTokenBlacklist struct {
	mu            sync.RWMutex
	revokedUntil  map[string]time.Time // jti -> blacklist entry expiry
	deviceCutoffs map[string]time.Time // deviceID -> invalidation cutoff
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)

// NewInMemoryTokenBlacklist returns an empty in-memory blacklist.
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		revokedUntil:  make(map[string]time.Time),
		deviceCutoffs: make(map[string]time.Time),
	}
}

func (b *InMemoryTokenBlacklist) AddToBlacklist(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revokedUntil[jti] = time.Now().Add(ttl)
	return nil
}

func (b *InMemoryTokenBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.revokedUntil[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.revokedUntil, jti)
		return false, nil
	}
	return true, nil
}

func (b *InMemoryTokenBlacklist) AddDeviceTokensToBlacklist(_ context.Context, deviceID string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deviceCutoffs[deviceID] = time.Now()
	return nil
}

func (b *InMemoryTokenBlacklist) IsDeviceTokenInvalidated(_ context.Context, deviceID string, tokenIssuedAt time.Time) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff, ok := b.deviceCutoffs[deviceID]
	if !ok {
		return false, nil
	}
	// Nanosecond comparison keeps tokens issued in the same second as
	// the cutoff deterministic in tests.
	return tokenIssuedAt.UnixNano() <= cutoff.UnixNano(), nil
}
