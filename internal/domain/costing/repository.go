package costing

import (
	"context"
	"time"

	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PurchaseRecordFilter narrows purchase-record queries
type PurchaseRecordFilter struct {
	shared.Filter
	FromDate       *time.Time
	ToDate         *time.Time
	CategoryID     *string
	Vendor         string
	IncludeDeleted bool
}

// PurchaseRecordRepository is the persistence boundary for invoices
type PurchaseRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseRecord, error)
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter PurchaseRecordFilter) ([]PurchaseRecord, error)
	CountForCompany(ctx context.Context, companyID uuid.UUID, filter PurchaseRecordFilter) (int64, error)
	Save(ctx context.Context, record *PurchaseRecord) error
}

// CostCategoryRepository is the persistence boundary for cost categories
type CostCategoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CostCategory, error)
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*CostCategory, error)
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]CostCategory, error)
	ExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error)
	Save(ctx context.Context, category *CostCategory) error
}
