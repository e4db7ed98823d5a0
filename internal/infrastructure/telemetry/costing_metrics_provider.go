package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/margincraft/backend/internal/domain/promotion"
)

// GormCostingMetricsProvider implements CostingMetricsProvider using GORM
// queries against the purchase_records and promotions tables.
type GormCostingMetricsProvider struct {
	db *gorm.DB
}

// NewGormCostingMetricsProvider creates a new GORM-backed costing metrics provider.
func NewGormCostingMetricsProvider(db *gorm.DB) *GormCostingMetricsProvider {
	return &GormCostingMetricsProvider{db: db}
}

var _ CostingMetricsProvider = (*GormCostingMetricsProvider)(nil)

// GetActivePromotionCountByRetailer returns the number of active promotions
// per retailer for a company.
func (p *GormCostingMetricsProvider) GetActivePromotionCountByRetailer(ctx context.Context, companyID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		Retailer string
		Count    int64
	}

	err := p.db.WithContext(ctx).
		Table("promotions").
		Select("retailer, COUNT(*) as count").
		Where("company_id = ? AND is_active = ? AND status = ?", companyID, true, promotion.StatusActive).
		Group("retailer").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active promotions: %w", err)
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Retailer] = row.Count
	}
	return result, nil
}

// GetUnknownCostKeyCount returns how many per-unit cost keys in the most
// recent purchase record carry a null unit cost for a company.
func (p *GormCostingMetricsProvider) GetUnknownCostKeyCount(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64

	err := p.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM purchase_records pr,
		     jsonb_each(pr.calculated_cpus::jsonb) AS cpu(key, value)
		WHERE pr.company_id = ?
		  AND pr.is_active = true
		  AND cpu.value = 'null'::jsonb
		  AND pr.id = (
		      SELECT id FROM purchase_records
		      WHERE company_id = ? AND is_active = true
		      ORDER BY record_date DESC, created_at DESC
		      LIMIT 1
		  )
	`, companyID, companyID).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unknown cost keys: %w", err)
	}

	return count, nil
}

// GormCompanyProvider implements CompanyProvider by listing the distinct
// companies that own active purchase records.
type GormCompanyProvider struct {
	db *gorm.DB
}

// NewGormCompanyProvider creates a new GORM-backed company provider.
func NewGormCompanyProvider(db *gorm.DB) *GormCompanyProvider {
	return &GormCompanyProvider{db: db}
}

var _ CompanyProvider = (*GormCompanyProvider)(nil)

// GetActiveCompanyIDs returns the distinct company IDs with active purchase records.
func (p *GormCompanyProvider) GetActiveCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	err := p.db.WithContext(ctx).
		Table("purchase_records").
		Where("is_active = ?", true).
		Distinct("company_id").
		Pluck("company_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active company IDs: %w", err)
	}

	return ids, nil
}
