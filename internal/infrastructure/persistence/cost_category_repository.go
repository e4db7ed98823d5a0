package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/infrastructure/persistence/company"
	"github.com/margincraft/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCostCategoryRepository implements costing.CostCategoryRepository using GORM
type GormCostCategoryRepository struct {
	db *gorm.DB
}

// NewGormCostCategoryRepository creates a new GORM-based cost category repository
func NewGormCostCategoryRepository(db *gorm.DB) *GormCostCategoryRepository {
	return &GormCostCategoryRepository{db: db}
}

// FindByID finds a cost category by ID
func (r *GormCostCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.CostCategory, error) {
	var model models.CostCategoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForCompany finds a cost category by ID within a company
func (r *GormCostCategoryRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*costing.CostCategory, error) {
	var model models.CostCategoryModel
	if err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForCompany finds all cost categories for a company matching the filter
func (r *GormCostCategoryRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]costing.CostCategory, error) {
	var categoryModels []models.CostCategoryModel
	query := r.db.WithContext(ctx).
		Model(&models.CostCategoryModel{}).
		Scopes(company.Scope(companyID)).
		Where("is_active = ?", true)

	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, CostCategorySortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	if err := query.Find(&categoryModels).Error; err != nil {
		return nil, err
	}

	categories := make([]costing.CostCategory, len(categoryModels))
	for i := range categoryModels {
		categories[i] = *categoryModels[i].ToDomain()
	}
	return categories, nil
}

// ExistsByName checks if an active category with the given name exists in
// the company. Matching is case-insensitive.
func (r *GormCostCategoryRepository) ExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CostCategoryModel{}).
		Scopes(company.Scope(companyID)).
		Where("LOWER(name) = ? AND is_active = ?", strings.ToLower(strings.TrimSpace(name)), true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a cost category with optimistic locking
func (r *GormCostCategoryRepository) Save(ctx context.Context, category *costing.CostCategory) error {
	model := models.CostCategoryModelFromDomain(category)
	model.Version = category.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.CostCategoryModel{}).
		Where("id = ? AND version = ?", category.ID, category.Version).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		category.Version++
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CostCategoryModel{}).
		Where("id = ?", category.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}

	model.Version = category.Version
	return r.db.WithContext(ctx).Create(model).Error
}

// Ensure GormCostCategoryRepository implements CostCategoryRepository
var _ costing.CostCategoryRepository = (*GormCostCategoryRepository)(nil)
