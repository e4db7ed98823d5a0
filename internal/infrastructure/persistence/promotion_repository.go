package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/domain/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/infrastructure/persistence/company"
	"github.com/margincraft/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPromotionRepository implements promotion.Repository using GORM
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewGormPromotionRepository creates a new GORM-based promotion repository
func NewGormPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// FindByID finds a promotion by ID
func (r *GormPromotionRepository) FindByID(ctx context.Context, id uuid.UUID) (*promotion.Promotion, error) {
	var model models.PromotionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForCompany finds all promotions for a company matching the filter
func (r *GormPromotionRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter promotion.Filter) ([]promotion.Promotion, error) {
	var promoModels []models.PromotionModel
	query := r.db.WithContext(ctx).
		Model(&models.PromotionModel{}).
		Scopes(company.Scope(companyID))
	query = r.applyFilter(query, filter)

	if err := query.Find(&promoModels).Error; err != nil {
		return nil, err
	}

	promos := make([]promotion.Promotion, len(promoModels))
	for i := range promoModels {
		promos[i] = *promoModels[i].ToDomain()
	}
	return promos, nil
}

// CountForCompany counts promotions for a company matching the filter
func (r *GormPromotionRepository) CountForCompany(ctx context.Context, companyID uuid.UUID, filter promotion.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&models.PromotionModel{}).
		Scopes(company.Scope(companyID))
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a promotion with optimistic locking
func (r *GormPromotionRepository) Save(ctx context.Context, promo *promotion.Promotion) error {
	model := models.PromotionModelFromDomain(promo)
	model.Version = promo.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.PromotionModel{}).
		Where("id = ? AND version = ?", promo.ID, promo.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		promo.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PromotionModel{}).
		Where("id = ?", promo.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = promo.Version
	return r.db.WithContext(ctx).Create(model).Error
}

// applyFilter applies filter options to the query
func (r *GormPromotionRepository) applyFilter(query *gorm.DB, filter promotion.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, PromotionSortFields, "updated_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPromotionRepository) applyFilterWithoutPagination(query *gorm.DB, filter promotion.Filter) *gorm.DB {
	if !filter.IncludeDeleted {
		query = query.Where("is_active = ?", true)
	}

	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR retailer ILIKE ?", searchPattern, searchPattern)
	}
	if filter.Retailer != "" {
		query = query.Where("retailer = ?", filter.Retailer)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	return query
}

// Ensure GormPromotionRepository implements Repository
var _ promotion.Repository = (*GormPromotionRepository)(nil)
