package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestMeterProvider_Disabled(t *testing.T) {
	cfg := telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "margincraft-test",
	}

	mp, err := telemetry.NewMeterProvider(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, cfg, mp.GetConfig())

	// Instruments built on the fallback meter record without error.
	counter, err := telemetry.NewCounter(mp.Meter("test"), "noop_total", "noop", "{op}")
	require.NoError(t, err)
	counter.Inc(context.Background())

	assert.NoError(t, mp.ForceFlush(context.Background()))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

// collect drains the manual reader and returns all metrics it saw.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestCounter_Accumulates(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	counter, err := telemetry.NewCounter(meter, "records_computed_total", "records computed", "{record}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, telemetry.AttrCompanyID.String("acme"))
	counter.Add(ctx, 4, telemetry.AttrCompanyID.String("acme"))

	m, ok := findMetric(collect(t, reader), "records_computed_total")
	require.True(t, ok)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)
}

func TestHistogram_CustomBoundaries(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "compute_duration_seconds",
		Description: "computation latency",
		Unit:        "s",
		Boundaries:  telemetry.SmallDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	hist.Record(ctx, 0.002)
	hist.RecordDuration(ctx, 30*time.Millisecond)

	m, ok := findMetric(collect(t, reader), "compute_duration_seconds")
	require.True(t, ok)

	data, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.Equal(t, telemetry.SmallDurationBuckets, data.DataPoints[0].Bounds)
}

func TestGauges_RecordLastValue(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	gauge, err := telemetry.NewGauge(meter, "active_promotions", "active promotions", "{promotion}")
	require.NoError(t, err)
	floatGauge, err := telemetry.NewFloatGauge(meter, "lowest_margin_percent", "lowest margin", "%")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 7)
	gauge.Record(ctx, 3)
	floatGauge.Record(ctx, 42.5)

	rm := collect(t, reader)

	m, ok := findMetric(rm, "active_promotions")
	require.True(t, ok)
	intData, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, intData.DataPoints, 1)
	assert.Equal(t, int64(3), intData.DataPoints[0].Value, "gauge keeps the last recorded value")

	m, ok = findMetric(rm, "lowest_margin_percent")
	require.True(t, ok)
	floatData, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, floatData.DataPoints, 1)
	assert.Equal(t, 42.5, floatData.DataPoints[0].Value)
}
