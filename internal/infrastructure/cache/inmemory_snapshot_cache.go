package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	appcosting "github.com/margincraft/backend/internal/application/costing"
	"go.uber.org/zap"
)

// defaultCleanupInterval controls how often expired snapshots are swept
const defaultCleanupInterval = 30 * time.Second

// InMemorySnapshotCache implements the CPU snapshot cache with local
// process memory. Suitable for single-instance deployments and tests;
// state is not shared across instances.
type InMemorySnapshotCache struct {
	snapshots sync.Map // map[uuid.UUID]*snapshotEntry
	ttl       time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	stopped   int32

	// Stats for monitoring
	hits   int64
	misses int64
}

// snapshotEntry wraps a cached snapshot with its expiration time
type snapshotEntry struct {
	snapshot  *appcosting.CPUSnapshotResponse
	expiresAt time.Time
}

func (e *snapshotEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemorySnapshotCacheOption is a functional option for configuring the cache
type InMemorySnapshotCacheOption func(*InMemorySnapshotCache)

// WithInMemorySnapshotTTL sets the snapshot expiry
func WithInMemorySnapshotTTL(ttl time.Duration) InMemorySnapshotCacheOption {
	return func(c *InMemorySnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithInMemorySnapshotLogger sets the logger for the cache
func WithInMemorySnapshotLogger(logger *zap.Logger) InMemorySnapshotCacheOption {
	return func(c *InMemorySnapshotCache) {
		c.logger = logger
	}
}

// NewInMemorySnapshotCache creates a new in-memory snapshot cache
func NewInMemorySnapshotCache(opts ...InMemorySnapshotCacheOption) *InMemorySnapshotCache {
	cache := &InMemorySnapshotCache{
		ttl:    defaultSnapshotTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get retrieves a company's snapshot from cache. A nil snapshot with a
// nil error is a cache miss.
func (c *InMemorySnapshotCache) Get(ctx context.Context, companyID uuid.UUID) (*appcosting.CPUSnapshotResponse, error) {
	if value, ok := c.snapshots.Load(companyID); ok {
		entry := value.(*snapshotEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("Cache hit for CPU snapshot", zap.String("company_id", companyID.String()))
			return entry.snapshot, nil
		}
		c.snapshots.Delete(companyID)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("Cache miss for CPU snapshot", zap.String("company_id", companyID.String()))
	return nil, nil
}

// Set stores a company's snapshot in cache
func (c *InMemorySnapshotCache) Set(ctx context.Context, companyID uuid.UUID, snapshot *appcosting.CPUSnapshotResponse) error {
	if snapshot == nil {
		return nil
	}

	c.snapshots.Store(companyID, &snapshotEntry{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

// Invalidate removes a company's snapshot from cache
func (c *InMemorySnapshotCache) Invalidate(ctx context.Context, companyID uuid.UUID) error {
	c.snapshots.Delete(companyID)
	c.logger.Debug("Invalidated CPU snapshot", zap.String("company_id", companyID.String()))
	return nil
}

// Count returns the number of cached snapshots (including expired but unswept entries)
func (c *InMemorySnapshotCache) Count() int {
	count := 0
	c.snapshots.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Stats returns hit and miss counters
func (c *InMemorySnapshotCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the cleanup goroutine
func (c *InMemorySnapshotCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// cleanupExpired periodically sweeps expired snapshots
func (c *InMemorySnapshotCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.snapshots.Range(func(key, value any) bool {
				if value.(*snapshotEntry).isExpired() {
					c.snapshots.Delete(key)
				}
				return true
			})
		}
	}
}

// Ensure InMemorySnapshotCache implements SnapshotCache
var _ appcosting.SnapshotCache = (*InMemorySnapshotCache)(nil)
