package promotion

import (
	"context"

	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrNotAnalyzed is raised when a comparison or recommendation is
// requested before Analyze has run at least once
func ErrNotAnalyzed() error {
	return shared.NewNotAnalyzedError("Promotion has not been analyzed yet")
}

// Filter narrows promotion queries
type Filter struct {
	shared.Filter
	Status         *Status
	Retailer       string
	IncludeDeleted bool
}

// Repository is the persistence boundary for promotions
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Promotion, error)
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter Filter) ([]Promotion, error)
	CountForCompany(ctx context.Context, companyID uuid.UUID, filter Filter) (int64, error)
	Save(ctx context.Context, promo *Promotion) error
}
