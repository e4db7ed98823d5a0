package costing

import (
	"context"
	"fmt"

	"github.com/margincraft/backend/internal/domain/costing"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CategoryService handles cost-category management
type CategoryService struct {
	categoryRepo costing.CostCategoryRepository
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo costing.CostCategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

// Create registers a new cost category. Names are unique per company.
func (s *CategoryService) Create(ctx context.Context, companyID uuid.UUID, req CreateCategoryRequest) (*CategoryResponse, error) {
	exists, err := s.categoryRepo.ExistsByName(ctx, companyID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return nil, shared.ErrAlreadyExists
	}

	category, err := costing.NewCostCategory(companyID, req.Name, req.UnitOfMeasure, req.Variants)
	if err != nil {
		return nil, err
	}
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to save category: %w", err)
	}

	response := ToCategoryResponse(category)
	return &response, nil
}

// GetByID retrieves a cost category scoped to the company
func (s *CategoryService) GetByID(ctx context.Context, companyID, categoryID uuid.UUID) (*CategoryResponse, error) {
	category, err := s.categoryRepo.FindByIDForCompany(ctx, companyID, categoryID)
	if err != nil {
		return nil, err
	}
	response := ToCategoryResponse(category)
	return &response, nil
}

// List retrieves cost categories with filtering and pagination
func (s *CategoryService) List(ctx context.Context, companyID uuid.UUID, filter CategoryListFilter) (*shared.Paginated[CategoryResponse], error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.OrderBy = "name"
	domainFilter.OrderDir = "asc"
	domainFilter.Search = filter.Search
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}

	categories, err := s.categoryRepo.FindAllForCompany(ctx, companyID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	items := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, ToCategoryResponse(&categories[i]))
	}
	result := shared.NewPaginated(items, int64(len(items)), domainFilter.Page, domainFilter.PageSize)
	return &result, nil
}

// Update renames a category and replaces its variant list
func (s *CategoryService) Update(ctx context.Context, companyID, categoryID uuid.UUID, req UpdateCategoryRequest) (*CategoryResponse, error) {
	category, err := s.categoryRepo.FindByIDForCompany(ctx, companyID, categoryID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != category.Name {
		exists, err := s.categoryRepo.ExistsByName(ctx, companyID, *req.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check category name: %w", err)
		}
		if exists {
			return nil, shared.ErrAlreadyExists
		}
		if err := category.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.UnitOfMeasure != nil {
		category.UnitOfMeasure = *req.UnitOfMeasure
	}
	if req.Variants != nil {
		category.SetVariants(req.Variants)
	}

	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to save category: %w", err)
	}
	response := ToCategoryResponse(category)
	return &response, nil
}

// Delete soft-deletes a category. Historical invoices keep referencing
// it by id; only new line items stop offering it.
func (s *CategoryService) Delete(ctx context.Context, companyID, categoryID uuid.UUID) error {
	category, err := s.categoryRepo.FindByIDForCompany(ctx, companyID, categoryID)
	if err != nil {
		return err
	}
	if err := category.SoftDelete(); err != nil {
		return err
	}
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}
