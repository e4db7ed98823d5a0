package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// newBusinessMetrics wires BusinessMetrics to a manual reader so tests can
// assert what was actually recorded, not just that calls don't blow up.
func newBusinessMetrics(t *testing.T, costing telemetry.CostingMetricsProvider) (*telemetry.BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("business-test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:           meter,
		Logger:          zap.NewNop(),
		CostingProvider: costing,
	})
	require.NoError(t, err)
	t.Cleanup(bm.Stop)

	return bm, reader
}

// counterPoint returns the value of the data point on a Sum metric whose
// attributes contain key=want, or false when no such point exists.
func counterPoint(t *testing.T, m metricdata.Metrics, key attribute.Key, want string) (int64, bool) {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == want {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func TestBusinessMetrics_RecordCreatedPerVendor(t *testing.T) {
	bm, reader := newBusinessMetrics(t, nil)
	ctx := context.Background()
	companyID := uuid.New()

	bm.RecordPurchaseRecordCreated(ctx, companyID, "Costco Wholesale")
	bm.RecordPurchaseRecordCreated(ctx, companyID, "Costco Wholesale")
	bm.RecordPurchaseRecordCreated(ctx, companyID, "Restaurant Depot")

	m, ok := findMetric(collect(t, reader), "margin_record_created_total")
	require.True(t, ok)

	costco, ok := counterPoint(t, m, "vendor", "Costco Wholesale")
	require.True(t, ok)
	assert.Equal(t, int64(2), costco)

	depot, ok := counterPoint(t, m, "vendor", "Restaurant Depot")
	require.True(t, ok)
	assert.Equal(t, int64(1), depot)

	_, ok = counterPoint(t, m, "company_id", companyID.String())
	assert.True(t, ok, "data points carry the company id")
}

func TestBusinessMetrics_RecordPurchaseWithAmount(t *testing.T) {
	bm, reader := newBusinessMetrics(t, nil)
	ctx := context.Background()
	companyID := uuid.New()

	bm.RecordPurchaseWithAmount(ctx, companyID, "Costco Wholesale", decimal.NewFromFloat(199.99))

	rm := collect(t, reader)

	created, ok := findMetric(rm, "margin_record_created_total")
	require.True(t, ok)
	count, ok := counterPoint(t, created, "vendor", "Costco Wholesale")
	require.True(t, ok)
	assert.Equal(t, int64(1), count)

	amount, ok := findMetric(rm, "margin_record_amount_total")
	require.True(t, ok)
	cents, ok := counterPoint(t, amount, "vendor", "Costco Wholesale")
	require.True(t, ok)
	assert.Equal(t, int64(19999), cents, "199.99 converts to cents")
}

func TestBusinessMetrics_PromotionAnalyzed(t *testing.T) {
	bm, reader := newBusinessMetrics(t, nil)
	ctx := context.Background()
	companyID := uuid.New()

	bm.RecordPromotionAnalyzed(ctx, companyID, "Costco", "participate")
	bm.RecordPromotionAnalyzed(ctx, companyID, "Whole Foods", "decline")

	m, ok := findMetric(collect(t, reader), "margin_promotion_analyzed_total")
	require.True(t, ok)

	participate, ok := counterPoint(t, m, "recommendation", "participate")
	require.True(t, ok)
	assert.Equal(t, int64(1), participate)

	wholeFoods, ok := counterPoint(t, m, "retailer", "Whole Foods")
	require.True(t, ok)
	assert.Equal(t, int64(1), wholeFoods)
}

func TestBusinessMetrics_SnapshotLookupStates(t *testing.T) {
	bm, reader := newBusinessMetrics(t, nil)
	ctx := context.Background()
	companyID := uuid.New()

	bm.RecordSnapshotLookup(ctx, companyID, telemetry.SnapshotCacheHit)
	bm.RecordSnapshotLookup(ctx, companyID, telemetry.SnapshotCacheHit)
	bm.RecordSnapshotLookup(ctx, companyID, telemetry.SnapshotCacheMiss)

	m, ok := findMetric(collect(t, reader), "margin_snapshot_lookup_total")
	require.True(t, ok)

	hits, ok := counterPoint(t, m, "cache.state", "hit")
	require.True(t, ok)
	assert.Equal(t, int64(2), hits)

	misses, ok := counterPoint(t, m, "cache.state", "miss")
	require.True(t, ok)
	assert.Equal(t, int64(1), misses)
}

func TestBusinessMetrics_UnknownCostKeyGauge(t *testing.T) {
	bm, reader := newBusinessMetrics(t, nil)
	ctx := context.Background()
	companyID := uuid.New()

	bm.RecordUnknownCostKeyCount(ctx, companyID, 5)
	bm.RecordUnknownCostKeyCount(ctx, companyID, 2)

	m, ok := findMetric(collect(t, reader), "margin_unknown_cost_key_count")
	require.True(t, ok)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value, "gauge keeps the last recorded value")
}

type mockCompanyProvider struct {
	companyIDs []uuid.UUID
	err        error
}

func (m *mockCompanyProvider) GetActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	return m.companyIDs, m.err
}

type mockCostingProvider struct {
	activeByRetailer map[string]int64
	unknownKeyCount  int64
	err              error
}

func (m *mockCostingProvider) GetActivePromotionCountByRetailer(ctx context.Context, companyID uuid.UUID) (map[string]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.activeByRetailer, nil
}

func (m *mockCostingProvider) GetUnknownCostKeyCount(ctx context.Context, companyID uuid.UUID) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.unknownKeyCount, nil
}

func TestBusinessMetrics_PeriodicCollectionPublishesGauges(t *testing.T) {
	costing := &mockCostingProvider{
		activeByRetailer: map[string]int64{"Costco": 2},
		unknownKeyCount:  5,
	}
	bm, reader := newBusinessMetrics(t, costing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	companies := &mockCompanyProvider{companyIDs: []uuid.UUID{uuid.New()}}

	// The first collection runs as soon as the loop starts, so a long
	// interval keeps the test deterministic.
	bm.StartPeriodicCollection(ctx, companies, time.Hour)

	require.Eventually(t, func() bool {
		rm := collect(t, reader)
		_, ok := findMetric(rm, "margin_active_promotion_count")
		if !ok {
			return false
		}
		_, ok = findMetric(rm, "margin_unknown_cost_key_count")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	rm := collect(t, reader)

	m, ok := findMetric(rm, "margin_active_promotion_count")
	require.True(t, ok)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2), gauge.DataPoints[0].Value)
	retailer, ok := gauge.DataPoints[0].Attributes.Value("retailer")
	require.True(t, ok)
	assert.Equal(t, "Costco", retailer.AsString())

	m, ok = findMetric(rm, "margin_unknown_cost_key_count")
	require.True(t, ok)
	gauge, ok = m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(5), gauge.DataPoints[0].Value)
}

func TestBusinessMetrics_PeriodicCollectionProviderFailures(t *testing.T) {
	tests := []struct {
		name      string
		costing   telemetry.CostingMetricsProvider
		companies *mockCompanyProvider
	}{
		{
			name:      "no costing provider configured",
			costing:   nil,
			companies: &mockCompanyProvider{companyIDs: []uuid.UUID{uuid.New()}},
		},
		{
			name:      "company lookup fails",
			costing:   &mockCostingProvider{unknownKeyCount: 5},
			companies: &mockCompanyProvider{err: errors.New("db down")},
		},
		{
			name:      "costing queries fail",
			costing:   &mockCostingProvider{err: errors.New("snapshot missing")},
			companies: &mockCompanyProvider{companyIDs: []uuid.UUID{uuid.New()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm, reader := newBusinessMetrics(t, tt.costing)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			bm.StartPeriodicCollection(ctx, tt.companies, 10*time.Millisecond)
			time.Sleep(50 * time.Millisecond)
			bm.Stop()

			rm := collect(t, reader)
			_, ok := findMetric(rm, "margin_active_promotion_count")
			assert.False(t, ok, "failed collection must not publish gauges")
		})
	}
}

func TestBusinessMetrics_StopIdempotent(t *testing.T) {
	bm, _ := newBusinessMetrics(t, nil)

	bm.Stop()
	bm.Stop()
	bm.Stop()
}

func TestBusinessMetrics_StartPeriodicCollectionOnlyOnce(t *testing.T) {
	costing := &mockCostingProvider{activeByRetailer: map[string]int64{"Costco": 1}}
	bm, _ := newBusinessMetrics(t, costing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	companies := &mockCompanyProvider{companyIDs: []uuid.UUID{uuid.New()}}

	bm.StartPeriodicCollection(ctx, companies, time.Hour)
	bm.StartPeriodicCollection(ctx, companies, time.Minute)
	bm.StartPeriodicCollection(ctx, companies, time.Second)

	bm.Stop()
}

func TestSnapshotCacheStateValues(t *testing.T) {
	assert.Equal(t, telemetry.SnapshotCacheState("hit"), telemetry.SnapshotCacheHit)
	assert.Equal(t, telemetry.SnapshotCacheState("miss"), telemetry.SnapshotCacheMiss)
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{Op: "collect", Err: "provider unavailable"}
	assert.Equal(t, "collect: provider unavailable", err.Error())
}
