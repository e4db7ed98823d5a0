package promotion

import (
	"sort"
	"time"

	"github.com/margincraft/backend/internal/domain/promotion"
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// VariantTermsRequest carries one variant's deal terms. Monetary fields
// are decimal strings.
type VariantTermsRequest struct {
	RetailPrice    string `json:"retail_price" binding:"required"`
	UnitsAvailable string `json:"units_available" binding:"required"`
	BaseUnitCost   string `json:"base_unit_cost" binding:"required"`
}

// LaborEntryRequest carries one labor cost of running the promotion
type LaborEntryRequest struct {
	Name  string `json:"name" binding:"required"`
	Kind  string `json:"kind" binding:"required,oneof=actual opportunity"`
	Hours string `json:"hours" binding:"required"`
	Rate  string `json:"rate" binding:"required"`
}

// CreatePromotionRequest represents a request to record a promotion deal
type CreatePromotionRequest struct {
	Name             string                         `json:"name" binding:"required,min=1,max=255"`
	Retailer         string                         `json:"retailer" binding:"required,min=1,max=255"`
	StartDate        *time.Time                     `json:"start_date"`
	EndDate          *time.Time                     `json:"end_date"`
	StoreSalePercent string                         `json:"store_sale_percent"`
	PaybackPercent   string                         `json:"payback_percent" binding:"required"`
	Variants         map[string]VariantTermsRequest `json:"variants"`
	Labor            []LaborEntryRequest            `json:"labor" binding:"omitempty,dive"`
}

// UpdatePromotionRequest carries a partial update; nil fields keep their
// stored value. Any edit invalidates a previously stored analysis.
type UpdatePromotionRequest struct {
	Name             *string                        `json:"name" binding:"omitempty,min=1,max=255"`
	Retailer         *string                        `json:"retailer" binding:"omitempty,min=1,max=255"`
	StartDate        *time.Time                     `json:"start_date"`
	EndDate          *time.Time                     `json:"end_date"`
	StoreSalePercent *string                        `json:"store_sale_percent"`
	PaybackPercent   *string                        `json:"payback_percent"`
	Variants         map[string]VariantTermsRequest `json:"variants"`
	Labor            []LaborEntryRequest            `json:"labor" binding:"omitempty,dive"`
}

// TransitionRequest moves a promotion through its status machine
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListFilter represents filter options for the promotion list
type ListFilter struct {
	Search   string  `form:"search"`
	Retailer string  `form:"retailer"`
	Status   *string `form:"status"`
	Page     int     `form:"page" binding:"omitempty,min=1"`
	PageSize int     `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string  `form:"order_by"`
	OrderDir string  `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// VariantTermsResponse represents one variant's deal terms
type VariantTermsResponse struct {
	Variant        string `json:"variant"`
	RetailPrice    string `json:"retail_price"`
	UnitsAvailable string `json:"units_available"`
	BaseUnitCost   string `json:"base_unit_cost"`
}

// LaborEntryResponse represents one labor cost entry
type LaborEntryResponse struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Hours string `json:"hours"`
	Rate  string `json:"rate"`
	Cost  string `json:"cost"`
}

// VariantAnalysisResponse is the computed outcome for one variant
type VariantAnalysisResponse struct {
	Variant            string  `json:"variant"`
	PromoCostPerUnit   string  `json:"promo_cost_per_unit"`
	UnitCostWithPromo  string  `json:"unit_cost_with_promo"`
	MarginWithoutPromo string  `json:"margin_without_promo"`
	MarginWithPromo    string  `json:"margin_with_promo"`
	MarginDelta        string  `json:"margin_delta"`
	TotalCostWithLabor *string `json:"total_cost_with_labor,omitempty"`
	MarginWithLabor    *string `json:"margin_with_labor,omitempty"`
	Quality            string  `json:"quality"`
	QualityLabel       string  `json:"quality_label"`
	TotalPromoCost     string  `json:"total_promo_cost"`
}

// AnalysisResponse is the stored analysis of a promotion
type AnalysisResponse struct {
	Variants              []VariantAnalysisResponse `json:"variants"`
	TotalPromoCost        string                    `json:"total_promo_cost"`
	TotalActualLabor      string                    `json:"total_actual_labor"`
	TotalOpportunityLabor string                    `json:"total_opportunity_labor"`
	Recommendation        string                    `json:"recommendation"`
	Reason                string                    `json:"reason"`
	AnalyzedAt            time.Time                 `json:"analyzed_at"`
}

// PromotionResponse represents a promotion in API responses
type PromotionResponse struct {
	ID               uuid.UUID              `json:"id"`
	CompanyID        uuid.UUID              `json:"company_id"`
	Name             string                 `json:"name"`
	Retailer         string                 `json:"retailer"`
	StartDate        *time.Time             `json:"start_date"`
	EndDate          *time.Time             `json:"end_date"`
	StoreSalePercent string                 `json:"store_sale_percent"`
	PaybackPercent   string                 `json:"payback_percent"`
	Variants         []VariantTermsResponse `json:"variants"`
	Labor            []LaborEntryResponse   `json:"labor"`
	Status           string                 `json:"status"`
	Analysis         *AnalysisResponse      `json:"analysis"`
	EditorVersions   map[string]int         `json:"editor_versions"`
	IsActive         bool                   `json:"is_active"`
	Version          int                    `json:"version"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// PromotionListItemResponse is the trimmed list-view projection
type PromotionListItemResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Retailer       string    `json:"retailer"`
	Status         string    `json:"status"`
	VariantCount   int       `json:"variant_count"`
	Recommendation *string   `json:"recommendation"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ComparisonSideResponse aggregates one side of the comparison
type ComparisonSideResponse struct {
	AverageMargin string `json:"average_margin"`
	MinMargin     string `json:"min_margin"`
	MaxMargin     string `json:"max_margin"`
	TotalCost     string `json:"total_cost"`
}

// ComparisonResponse holds with/without-promo statistics side by side
type ComparisonResponse struct {
	PromotionID  uuid.UUID              `json:"promotion_id"`
	WithPromo    ComparisonSideResponse `json:"with_promo"`
	WithoutPromo ComparisonSideResponse `json:"without_promo"`
}

// RecommendationResponse is the standalone recommendation view
type RecommendationResponse struct {
	PromotionID    uuid.UUID `json:"promotion_id"`
	Recommendation string    `json:"recommendation"`
	Reason         string    `json:"reason"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

func parseAmount(field, raw string, violations *[]shared.FieldViolation) valueobject.Amount {
	amount, err := valueobject.NewAmountFromString(raw)
	if err != nil {
		*violations = append(*violations, shared.FieldViolation{Field: field, Message: "must be a decimal number"})
		return valueobject.Zero
	}
	return amount
}

func toVariantTerms(requests map[string]VariantTermsRequest) (map[string]promotion.VariantTerms, []shared.FieldViolation) {
	if requests == nil {
		return nil, nil
	}
	var violations []shared.FieldViolation
	variants := make(map[string]promotion.VariantTerms, len(requests))
	for label, req := range requests {
		prefix := "variants." + label + "."
		variants[label] = promotion.VariantTerms{
			RetailPrice:    parseAmount(prefix+"retail_price", req.RetailPrice, &violations),
			UnitsAvailable: parseAmount(prefix+"units_available", req.UnitsAvailable, &violations),
			BaseUnitCost:   parseAmount(prefix+"base_unit_cost", req.BaseUnitCost, &violations),
		}
	}
	return variants, violations
}

func toLaborEntries(requests []LaborEntryRequest) ([]promotion.LaborEntry, []shared.FieldViolation) {
	if requests == nil {
		return nil, nil
	}
	var violations []shared.FieldViolation
	entries := make([]promotion.LaborEntry, 0, len(requests))
	for _, req := range requests {
		prefix := "labor." + req.Name + "."
		entries = append(entries, promotion.LaborEntry{
			Name:  req.Name,
			Kind:  promotion.LaborKind(req.Kind),
			Hours: parseAmount(prefix+"hours", req.Hours, &violations),
			Rate:  parseAmount(prefix+"rate", req.Rate, &violations),
		})
	}
	return entries, violations
}

// ToPromotionResponse maps the aggregate to its API projection
func ToPromotionResponse(p *promotion.Promotion) PromotionResponse {
	variants := make([]VariantTermsResponse, 0, len(p.Variants))
	for label, terms := range p.Variants {
		variants = append(variants, VariantTermsResponse{
			Variant:        label,
			RetailPrice:    terms.RetailPrice.StringFixed2(),
			UnitsAvailable: terms.UnitsAvailable.StringFixed2(),
			BaseUnitCost:   terms.BaseUnitCost.StringFixed2(),
		})
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].Variant < variants[j].Variant })

	labor := make([]LaborEntryResponse, 0, len(p.Labor))
	for _, entry := range p.Labor {
		labor = append(labor, LaborEntryResponse{
			Name:  entry.Name,
			Kind:  string(entry.Kind),
			Hours: entry.Hours.StringFixed2(),
			Rate:  entry.Rate.StringFixed2(),
			Cost:  entry.Cost().Round2().StringFixed2(),
		})
	}

	return PromotionResponse{
		ID:               p.ID,
		CompanyID:        p.CompanyID,
		Name:             p.Name,
		Retailer:         p.Retailer,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		StoreSalePercent: p.StoreSalePercent.StringFixed2(),
		PaybackPercent:   p.PaybackPercent.StringFixed2(),
		Variants:         variants,
		Labor:            labor,
		Status:           string(p.Status),
		Analysis:         toAnalysisResponse(p.Analysis),
		EditorVersions:   p.EditorVersions,
		IsActive:         p.IsActive,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ToPromotionListItemResponse maps the aggregate to the list view
func ToPromotionListItemResponse(p *promotion.Promotion) PromotionListItemResponse {
	item := PromotionListItemResponse{
		ID:           p.ID,
		Name:         p.Name,
		Retailer:     p.Retailer,
		Status:       string(p.Status),
		VariantCount: len(p.Variants),
		IsActive:     p.IsActive,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.Analysis != nil {
		rec := string(p.Analysis.Recommendation)
		item.Recommendation = &rec
	}
	return item
}

func toAnalysisResponse(analysis *promotion.Analysis) *AnalysisResponse {
	if analysis == nil {
		return nil
	}
	variants := make([]VariantAnalysisResponse, 0, len(analysis.Variants))
	for _, v := range analysis.Variants {
		variants = append(variants, VariantAnalysisResponse{
			Variant:            v.Variant,
			PromoCostPerUnit:   v.PromoCostPerUnit.StringFixed2(),
			UnitCostWithPromo:  v.UnitCostWithPromo.StringFixed2(),
			MarginWithoutPromo: v.MarginWithoutPromo.StringFixed2(),
			MarginWithPromo:    v.MarginWithPromo.StringFixed2(),
			MarginDelta:        v.MarginDelta.StringFixed2(),
			TotalCostWithLabor: valueobject.Fixed2OrNil(v.TotalCostWithLabor),
			MarginWithLabor:    valueobject.Fixed2OrNil(v.MarginWithLabor),
			Quality:            string(v.Quality),
			QualityLabel:       v.Quality.LegacyLabel(),
			TotalPromoCost:     v.TotalPromoCost.StringFixed2(),
		})
	}
	return &AnalysisResponse{
		Variants:              variants,
		TotalPromoCost:        analysis.TotalPromoCost.StringFixed2(),
		TotalActualLabor:      analysis.TotalActualLabor.StringFixed2(),
		TotalOpportunityLabor: analysis.TotalOpportunityLabor.StringFixed2(),
		Recommendation:        string(analysis.Recommendation),
		Reason:                analysis.Reason,
		AnalyzedAt:            analysis.AnalyzedAt,
	}
}

func toComparisonSideResponse(side promotion.ComparisonSide) ComparisonSideResponse {
	return ComparisonSideResponse{
		AverageMargin: side.AverageMargin.StringFixed2(),
		MinMargin:     side.MinMargin.StringFixed2(),
		MaxMargin:     side.MaxMargin.StringFixed2(),
		TotalCost:     side.TotalCost.StringFixed2(),
	}
}
