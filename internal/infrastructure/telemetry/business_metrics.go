// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the margin engine.
// It tracks purchase record activity, promotion analysis outcomes,
// and costing coverage health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	recordCreatedTotal     *Counter
	recordAmountTotal      *Counter
	promotionAnalyzedTotal *Counter
	snapshotLookupTotal    *Counter

	// Gauge metrics (point-in-time values)
	unknownCostKeyCount  *Gauge
	activePromotionCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data providers for periodic collection
	costingProvider CostingMetricsProvider
}

// CostingMetricsProvider provides costing and promotion data for periodic
// metrics collection. This interface allows the telemetry layer to query
// margin-engine state without depending on the domain packages directly.
type CostingMetricsProvider interface {
	// GetActivePromotionCountByRetailer returns the number of active promotions
	// per retailer for a company
	GetActivePromotionCountByRetailer(ctx context.Context, companyID uuid.UUID) (map[string]int64, error)

	// GetUnknownCostKeyCount returns how many per-unit cost keys in the latest
	// snapshot have no known unit cost for a company
	GetUnknownCostKeyCount(ctx context.Context, companyID uuid.UUID) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	CostingProvider CostingMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		costingProvider: cfg.CostingProvider,
	}

	// Initialize counter metrics
	var err error

	// Purchase record metrics
	bm.recordCreatedTotal, err = NewCounter(
		cfg.Meter,
		"margin_record_created_total",
		"Total number of purchase records created",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	bm.recordAmountTotal, err = NewCounter(
		cfg.Meter,
		"margin_record_amount_total",
		"Total recorded purchase amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	// Promotion metrics
	bm.promotionAnalyzedTotal, err = NewCounter(
		cfg.Meter,
		"margin_promotion_analyzed_total",
		"Total number of promotion margin analyses performed",
		"{analyses}",
	)
	if err != nil {
		return nil, err
	}

	// Snapshot cache metrics
	bm.snapshotLookupTotal, err = NewCounter(
		cfg.Meter,
		"margin_snapshot_lookup_total",
		"Total number of cost snapshot lookups",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	// Costing health gauge metrics
	bm.unknownCostKeyCount, err = NewGauge(
		cfg.Meter,
		"margin_unknown_cost_key_count",
		"Number of per-unit cost keys with no known unit cost",
		"{keys}",
	)
	if err != nil {
		return nil, err
	}

	bm.activePromotionCount, err = NewGauge(
		cfg.Meter,
		"margin_active_promotion_count",
		"Number of active promotions",
		"{promotions}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Purchase Record Metrics
// =============================================================================

// RecordPurchaseRecordCreated records a purchase record creation event.
// This should be called from the application layer when a record is created.
func (bm *BusinessMetrics) RecordPurchaseRecordCreated(ctx context.Context, companyID uuid.UUID, vendor string) {
	bm.recordCreatedTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
		AttrVendor.String(vendor),
	)
}

// RecordPurchaseAmount records the total paid amount of a purchase record.
// Amount should be in the smallest currency unit (cents).
func (bm *BusinessMetrics) RecordPurchaseAmount(ctx context.Context, companyID uuid.UUID, vendor string, amountCents int64) {
	bm.recordAmountTotal.Add(ctx, amountCents,
		AttrCompanyID.String(companyID.String()),
		AttrVendor.String(vendor),
	)
}

// RecordPurchaseWithAmount is a convenience method that records both record count and amount.
func (bm *BusinessMetrics) RecordPurchaseWithAmount(ctx context.Context, companyID uuid.UUID, vendor string, amount decimal.Decimal) {
	bm.RecordPurchaseRecordCreated(ctx, companyID, vendor)

	// Convert to cents (multiply by 100)
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	bm.RecordPurchaseAmount(ctx, companyID, vendor, amountCents)
}

// =============================================================================
// Promotion Metrics
// =============================================================================

// RecordPromotionAnalyzed records a promotion margin analysis.
// The recommendation label carries the verdict (participate, decline, review).
func (bm *BusinessMetrics) RecordPromotionAnalyzed(ctx context.Context, companyID uuid.UUID, retailer, recommendation string) {
	bm.promotionAnalyzedTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
		AttrRetailer.String(retailer),
		AttrRecommendation.String(recommendation),
	)
}

// =============================================================================
// Snapshot Cache Metrics
// =============================================================================

// SnapshotCacheState labels the outcome of a snapshot cache lookup.
type SnapshotCacheState string

const (
	SnapshotCacheHit  SnapshotCacheState = "hit"
	SnapshotCacheMiss SnapshotCacheState = "miss"
)

// RecordSnapshotLookup records a cost snapshot cache lookup and its outcome.
func (bm *BusinessMetrics) RecordSnapshotLookup(ctx context.Context, companyID uuid.UUID, state SnapshotCacheState) {
	bm.snapshotLookupTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
		AttrSnapshotCacheState.String(string(state)),
	)
}

// =============================================================================
// Costing Health Metrics
// =============================================================================

// RecordActivePromotionCount records the current number of active promotions
// for a retailer. This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordActivePromotionCount(ctx context.Context, companyID uuid.UUID, retailer string, count int64) {
	bm.activePromotionCount.Record(ctx, count,
		AttrCompanyID.String(companyID.String()),
		AttrRetailer.String(retailer),
	)
}

// RecordUnknownCostKeyCount records how many cost keys currently lack a unit cost.
// This is a gauge metric that should be updated periodically.
func (bm *BusinessMetrics) RecordUnknownCostKeyCount(ctx context.Context, companyID uuid.UUID, count int64) {
	bm.unknownCostKeyCount.Record(ctx, count,
		AttrCompanyID.String(companyID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// CompanyProvider provides company IDs for periodic metrics collection.
type CompanyProvider interface {
	GetActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects costing health metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, companyProvider CompanyProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, companyProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, companyProvider CompanyProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectCostingMetrics(ctx, companyProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectCostingMetrics(ctx, companyProvider)
		}
	}
}

// collectCostingMetrics collects costing gauge metrics for all companies.
func (bm *BusinessMetrics) collectCostingMetrics(ctx context.Context, companyProvider CompanyProvider) {
	if bm.costingProvider == nil {
		bm.logger.Debug("No costing provider configured, skipping costing metrics collection")
		return
	}

	companyIDs, err := companyProvider.GetActiveCompanyIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get company IDs for metrics collection", zap.Error(err))
		return
	}

	for _, companyID := range companyIDs {
		bm.collectCompanyCostingMetrics(ctx, companyID)
	}
}

// collectCompanyCostingMetrics collects costing metrics for a single company.
func (bm *BusinessMetrics) collectCompanyCostingMetrics(ctx context.Context, companyID uuid.UUID) {
	// Collect active promotion counts by retailer
	activeByRetailer, err := bm.costingProvider.GetActivePromotionCountByRetailer(ctx, companyID)
	if err != nil {
		bm.logger.Warn("Failed to get active promotion count for company",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	} else {
		for retailer, count := range activeByRetailer {
			bm.RecordActivePromotionCount(ctx, companyID, retailer, count)
		}
	}

	// Collect unknown cost key count
	unknownKeys, err := bm.costingProvider.GetUnknownCostKeyCount(ctx, companyID)
	if err != nil {
		bm.logger.Warn("Failed to get unknown cost key count for company",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordUnknownCostKeyCount(ctx, companyID, unknownKeys)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
