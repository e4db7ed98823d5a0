package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appcosting "github.com/margincraft/backend/internal/application/costing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *appcosting.CPUSnapshotResponse {
	return &appcosting.CPUSnapshotResponse{
		Entries: []appcosting.CPUSnapshotEntry{{
			Key:          "jars+8oz",
			CategoryName: "Jars",
			Variant:      "8oz",
			UnitCost:     "2.20",
			AsOf:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		}},
		GeneratedAt: time.Now(),
	}
}

func TestInMemorySnapshotCache_GetSetInvalidate(t *testing.T) {
	c := NewInMemorySnapshotCache()
	defer c.Close()

	ctx := context.Background()
	companyID := uuid.New()

	missed, err := c.Get(ctx, companyID)
	require.NoError(t, err)
	assert.Nil(t, missed)

	require.NoError(t, c.Set(ctx, companyID, sampleSnapshot()))

	hit, err := c.Get(ctx, companyID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "2.20", hit.Entries[0].UnitCost)

	require.NoError(t, c.Invalidate(ctx, companyID))

	gone, err := c.Get(ctx, companyID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestInMemorySnapshotCache_IsolatesCompanies(t *testing.T) {
	c := NewInMemorySnapshotCache()
	defer c.Close()

	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()

	require.NoError(t, c.Set(ctx, first, sampleSnapshot()))
	require.NoError(t, c.Invalidate(ctx, second))

	hit, err := c.Get(ctx, first)
	require.NoError(t, err)
	assert.NotNil(t, hit)

	other, err := c.Get(ctx, second)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestInMemorySnapshotCache_ExpiresEntries(t *testing.T) {
	c := NewInMemorySnapshotCache(WithInMemorySnapshotTTL(10 * time.Millisecond))
	defer c.Close()

	ctx := context.Background()
	companyID := uuid.New()

	require.NoError(t, c.Set(ctx, companyID, sampleSnapshot()))
	time.Sleep(25 * time.Millisecond)

	expired, err := c.Get(ctx, companyID)
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestInMemorySnapshotCache_IgnoresNilSnapshot(t *testing.T) {
	c := NewInMemorySnapshotCache()
	defer c.Close()

	ctx := context.Background()
	companyID := uuid.New()

	require.NoError(t, c.Set(ctx, companyID, nil))
	assert.Equal(t, 0, c.Count())
}

func TestInMemorySnapshotCache_Stats(t *testing.T) {
	c := NewInMemorySnapshotCache()
	defer c.Close()

	ctx := context.Background()
	companyID := uuid.New()

	_, _ = c.Get(ctx, companyID)
	require.NoError(t, c.Set(ctx, companyID, sampleSnapshot()))
	_, _ = c.Get(ctx, companyID)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}
