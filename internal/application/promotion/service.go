package promotion

import (
	"context"
	"fmt"

	"github.com/margincraft/backend/internal/domain/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/margin"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// Service handles promotion deals and their margin analysis
type Service struct {
	promoRepo       promotion.Repository
	policy          margin.Policy
	businessMetrics *telemetry.BusinessMetrics
}

// NewService creates a new promotion Service. The policy holds the
// company's margin band edges and recommendation cutoffs.
func NewService(promoRepo promotion.Repository, policy margin.Policy) *Service {
	return &Service{promoRepo: promoRepo, policy: policy}
}

// SetBusinessMetrics sets the business metrics collector (optional)
func (s *Service) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.businessMetrics = bm
}

// Create records a new promotion deal in draft status
func (s *Service) Create(ctx context.Context, companyID uuid.UUID, deviceID string, req CreatePromotionRequest) (*PromotionResponse, error) {
	variants, violations := toVariantTerms(req.Variants)
	labor, laborViolations := toLaborEntries(req.Labor)
	violations = append(violations, laborViolations...)

	storeSale := valueobject.Zero
	if req.StoreSalePercent != "" {
		storeSale = parseAmount("store_sale_percent", req.StoreSalePercent, &violations)
	}
	payback := parseAmount("payback_percent", req.PaybackPercent, &violations)
	if len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	promo, err := promotion.NewPromotion(companyID, req.Name, req.Retailer, storeSale, payback, variants, labor)
	if err != nil {
		return nil, err
	}
	promo.StartDate = req.StartDate
	promo.EndDate = req.EndDate
	promo.TouchEditor(deviceID)

	if err := s.promoRepo.Save(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to save promotion: %w", err)
	}
	response := ToPromotionResponse(promo)
	return &response, nil
}

// GetByID retrieves a promotion, enforcing company ownership
func (s *Service) GetByID(ctx context.Context, companyID, promoID uuid.UUID) (*PromotionResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}
	response := ToPromotionResponse(promo)
	return &response, nil
}

// List retrieves promotions with filtering and pagination
func (s *Service) List(ctx context.Context, companyID uuid.UUID, filter ListFilter) (*shared.Paginated[PromotionListItemResponse], error) {
	domainFilter := s.buildFilter(filter)

	promos, err := s.promoRepo.FindAllForCompany(ctx, companyID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	total, err := s.promoRepo.CountForCompany(ctx, companyID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count promotions: %w", err)
	}

	items := make([]PromotionListItemResponse, 0, len(promos))
	for i := range promos {
		items = append(items, ToPromotionListItemResponse(&promos[i]))
	}
	result := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.PageSize)
	return &result, nil
}

// Update merges a partial update into the promotion. Any stored analysis
// is invalidated; the editing device's version counter is bumped by one.
func (s *Service) Update(ctx context.Context, companyID, promoID uuid.UUID, deviceID string, req UpdatePromotionRequest) (*PromotionResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}

	variants, violations := toVariantTerms(req.Variants)
	labor, laborViolations := toLaborEntries(req.Labor)
	violations = append(violations, laborViolations...)

	var storeSale, payback *valueobject.Amount
	if req.StoreSalePercent != nil {
		v := parseAmount("store_sale_percent", *req.StoreSalePercent, &violations)
		storeSale = &v
	}
	if req.PaybackPercent != nil {
		v := parseAmount("payback_percent", *req.PaybackPercent, &violations)
		payback = &v
	}
	if len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	update := promotion.Update{
		Name:             req.Name,
		Retailer:         req.Retailer,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		StoreSalePercent: storeSale,
		PaybackPercent:   payback,
		Labor:            labor,
		Variants:         variants,
	}
	if err := promo.Apply(update, deviceID); err != nil {
		return nil, err
	}

	if err := s.promoRepo.Save(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to save promotion: %w", err)
	}
	response := ToPromotionResponse(promo)
	return &response, nil
}

// Delete soft-deletes a promotion. Deleting twice is an error.
func (s *Service) Delete(ctx context.Context, companyID, promoID uuid.UUID, deviceID string) error {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return err
	}
	if err := promo.SoftDelete(); err != nil {
		return err
	}
	promo.TouchEditor(deviceID)

	if err := s.promoRepo.Save(ctx, promo); err != nil {
		return fmt.Errorf("failed to save promotion: %w", err)
	}
	return nil
}

// Analyze computes the promotion's per-variant margins and the overall
// recommendation, stores the result and returns the refreshed view.
// Re-running an analysis is an edit: the caller's version counter is
// bumped even though the inputs are unchanged.
func (s *Service) Analyze(ctx context.Context, companyID, promoID uuid.UUID, deviceID string) (*PromotionResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}

	analysis := promotion.Analyze(promo, s.policy)
	promo.Analysis = &analysis
	promo.TouchEditor(deviceID)

	if err := s.promoRepo.Save(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to save promotion: %w", err)
	}

	if s.businessMetrics != nil {
		s.businessMetrics.RecordPromotionAnalyzed(ctx, companyID, promo.Retailer, string(analysis.Recommendation))
	}

	response := ToPromotionResponse(promo)
	return &response, nil
}

// Compare returns with/without-promo statistics for an analyzed
// promotion. Unanalyzed promotions yield a NOT_ANALYZED error.
func (s *Service) Compare(ctx context.Context, companyID, promoID uuid.UUID) (*ComparisonResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}

	comparison, err := promo.Compare()
	if err != nil {
		return nil, err
	}
	return &ComparisonResponse{
		PromotionID:  promo.ID,
		WithPromo:    toComparisonSideResponse(comparison.WithPromo),
		WithoutPromo: toComparisonSideResponse(comparison.WithoutPromo),
	}, nil
}

// GetRecommendation returns the stored verdict of an analyzed promotion
func (s *Service) GetRecommendation(ctx context.Context, companyID, promoID uuid.UUID) (*RecommendationResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}
	if !promo.IsAnalyzed() {
		return nil, promotion.ErrNotAnalyzed()
	}
	return &RecommendationResponse{
		PromotionID:    promo.ID,
		Recommendation: string(promo.Analysis.Recommendation),
		Reason:         promo.Analysis.Reason,
		AnalyzedAt:     promo.Analysis.AnalyzedAt,
	}, nil
}

// Transition moves the promotion through its status machine
func (s *Service) Transition(ctx context.Context, companyID, promoID uuid.UUID, deviceID string, req TransitionRequest) (*PromotionResponse, error) {
	promo, err := s.findOwned(ctx, companyID, promoID)
	if err != nil {
		return nil, err
	}
	if err := promo.TransitionTo(promotion.Status(req.Status)); err != nil {
		return nil, err
	}
	promo.TouchEditor(deviceID)

	if err := s.promoRepo.Save(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to save promotion: %w", err)
	}
	response := ToPromotionResponse(promo)
	return &response, nil
}

func (s *Service) findOwned(ctx context.Context, companyID, promoID uuid.UUID) (*promotion.Promotion, error) {
	promo, err := s.promoRepo.FindByID(ctx, promoID)
	if err != nil {
		return nil, err
	}
	if !promo.BelongsTo(companyID) {
		return nil, shared.NewOwnershipError("promotion belongs to a different company")
	}
	return promo, nil
}

func (s *Service) buildFilter(filter ListFilter) promotion.Filter {
	domainFilter := promotion.Filter{
		Filter:   shared.DefaultFilter(),
		Retailer: filter.Retailer,
	}
	domainFilter.OrderBy = "updated_at"
	domainFilter.Search = filter.Search
	if filter.Status != nil {
		status := promotion.Status(*filter.Status)
		domainFilter.Status = &status
	}
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
	return domainFilter
}
