package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/gin-gonic/gin"
)

func metricsRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	r := gin.New()
	r.Use(HTTPMetricsWithMeter(meter, true))
	r.GET("/api/promotions/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "promotion payload")
	})
	r.POST("/api/purchase-records", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r, reader
}

func readMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func metricByName(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func dpAttr(attrs attribute.Set, key attribute.Key) (attribute.Value, bool) {
	return attrs.Value(key)
}

func TestHTTPMetrics_CountsByRouteAndStatus(t *testing.T) {
	r, reader := metricsRouter(t)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/promotions/promo-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	m, ok := metricByName(readMetrics(t, reader), "http_server_request_total")
	require.True(t, ok)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(3), dp.Value)

	route, ok := dpAttr(dp.Attributes, telemetry.AttrHTTPRoute)
	require.True(t, ok)
	assert.Equal(t, "/api/promotions/:id", route.AsString(), "labels use the route pattern, not the concrete path")

	status, ok := dpAttr(dp.Attributes, telemetry.AttrHTTPStatusCode)
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())
}

func TestHTTPMetrics_RecordsLatencyAndSizes(t *testing.T) {
	r, reader := metricsRouter(t)

	body := strings.NewReader(`{"vendor":"acme-foods"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/purchase-records", body)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	rm := readMetrics(t, reader)

	m, ok := metricByName(rm, "http_server_request_duration_seconds")
	require.True(t, ok)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	_, hasStatus := dpAttr(hist.DataPoints[0].Attributes, telemetry.AttrHTTPStatusCode)
	assert.False(t, hasStatus, "latency carries only method and route")

	m, ok = metricByName(rm, "http_server_request_size_bytes")
	require.True(t, ok)
	reqSize, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, reqSize.DataPoints, 1)
	assert.Positive(t, reqSize.DataPoints[0].Sum)

	_, ok = metricByName(rm, "http_server_response_size_bytes")
	assert.True(t, ok)
}

func TestHTTPMetrics_LabelsAuthenticatedCompany(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(JWTCompanyIDKey, "company-9") })
	r.Use(HTTPMetricsWithMeter(meter, true))
	r.GET("/api/cost-snapshots", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cost-snapshots", nil))
	require.Equal(t, http.StatusOK, w.Code)

	m, ok := metricByName(readMetrics(t, reader), "http_server_request_total")
	require.True(t, ok)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	company, ok := dpAttr(sum.DataPoints[0].Attributes, telemetry.AttrCompanyID)
	require.True(t, ok)
	assert.Equal(t, "company-9", company.AsString())
}

func TestHTTPMetrics_UnmatchedRouteIsBucketedAsUnknown(t *testing.T) {
	r, reader := metricsRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	m, ok := metricByName(readMetrics(t, reader), "http_server_request_total")
	require.True(t, ok)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	route, ok := dpAttr(sum.DataPoints[0].Attributes, telemetry.AttrHTTPRoute)
	require.True(t, ok)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetrics_DisabledIsPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
