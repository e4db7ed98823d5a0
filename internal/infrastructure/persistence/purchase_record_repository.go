package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/infrastructure/persistence/company"
	"github.com/margincraft/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPurchaseRecordRepository implements costing.PurchaseRecordRepository using GORM
type GormPurchaseRecordRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRecordRepository creates a new GORM-based purchase record repository
func NewGormPurchaseRecordRepository(db *gorm.DB) *GormPurchaseRecordRepository {
	return &GormPurchaseRecordRepository{db: db}
}

// FindByID finds a purchase record by ID
func (r *GormPurchaseRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.PurchaseRecord, error) {
	var model models.PurchaseRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForCompany finds all purchase records for a company matching the filter
func (r *GormPurchaseRecordRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter costing.PurchaseRecordFilter) ([]costing.PurchaseRecord, error) {
	var recordModels []models.PurchaseRecordModel
	query := r.db.WithContext(ctx).
		Model(&models.PurchaseRecordModel{}).
		Scopes(company.Scope(companyID))
	query = r.applyFilter(query, filter)

	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]costing.PurchaseRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, nil
}

// CountForCompany counts purchase records for a company matching the filter
func (r *GormPurchaseRecordRepository) CountForCompany(ctx context.Context, companyID uuid.UUID, filter costing.PurchaseRecordFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.PurchaseRecordModel{}).
		Scopes(company.Scope(companyID))
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a purchase record with optimistic locking.
// A stale whole-record version means another editor saved first and the
// caller gets shared.ErrConcurrencyConflict.
func (r *GormPurchaseRecordRepository) Save(ctx context.Context, record *costing.PurchaseRecord) error {
	model := models.PurchaseRecordModelFromDomain(record)
	model.Version = record.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.PurchaseRecordModel{}).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		record.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseRecordModel{}).
		Where("id = ?", record.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = record.Version
	return r.db.WithContext(ctx).Create(model).Error
}

// applyFilter applies filter options to the query
func (r *GormPurchaseRecordRepository) applyFilter(query *gorm.DB, filter costing.PurchaseRecordFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, PurchaseRecordSortFields, "record_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPurchaseRecordRepository) applyFilterWithoutPagination(query *gorm.DB, filter costing.PurchaseRecordFilter) *gorm.DB {
	if !filter.IncludeDeleted {
		query = query.Where("is_active = ?", true)
	}

	if filter.Search != "" {
		query = query.Where("vendor ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Vendor != "" {
		query = query.Where("vendor = ?", filter.Vendor)
	}
	if filter.FromDate != nil {
		query = query.Where("record_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("record_date <= ?", *filter.ToDate)
	}
	if filter.CategoryID != nil && *filter.CategoryID != "" {
		// Line items live in a JSONB map keyed by category+variant
		query = query.Where(
			"EXISTS (SELECT 1 FROM jsonb_each(line_items) AS li WHERE li.value->>'category_id' = ?)",
			*filter.CategoryID)
	}

	return query
}

// Ensure GormPurchaseRecordRepository implements PurchaseRecordRepository
var _ costing.PurchaseRecordRepository = (*GormPurchaseRecordRepository)(nil)
