package models

import (
	"time"

	"github.com/margincraft/backend/internal/domain/promotion"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// PromotionModel is the persistence model for the Promotion aggregate
// root. Variant terms, labor entries and the computed analysis are
// document-shaped and stored as JSONB; a null analysis column means the
// promotion has not been analyzed since its last edit.
type PromotionModel struct {
	CompanyAggregateModel
	Name             string             `gorm:"type:varchar(200);not null"`
	Retailer         string             `gorm:"type:varchar(200);not null;index"`
	StartDate        *time.Time         `gorm:""`
	EndDate          *time.Time         `gorm:""`
	StoreSalePercent valueobject.Amount `gorm:"type:decimal(10,4);not null;default:0"`
	PaybackPercent   valueobject.Amount `gorm:"type:decimal(10,4);not null;default:0"`
	LaborJSON        string             `gorm:"column:labor;type:jsonb;default:'[]'"`
	VariantsJSON     string             `gorm:"column:variants;type:jsonb;default:'{}'"`
	Status           promotion.Status   `gorm:"type:varchar(20);not null;index"`
	AnalysisJSON     *string            `gorm:"column:analysis;type:jsonb"`
}

// TableName returns the table name for GORM
func (PromotionModel) TableName() string {
	return "promotions"
}

// ToDomain converts the persistence model to a domain Promotion
func (m *PromotionModel) ToDomain() *promotion.Promotion {
	promo := &promotion.Promotion{
		Name:             m.Name,
		Retailer:         m.Retailer,
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		StoreSalePercent: m.StoreSalePercent,
		PaybackPercent:   m.PaybackPercent,
		Status:           m.Status,
		Labor:            make([]promotion.LaborEntry, 0),
		Variants:         make(map[string]promotion.VariantTerms),
	}
	m.PopulateCompanyAggregateRoot(&promo.CompanyAggregateRoot)

	unmarshalJSON(m.LaborJSON, &promo.Labor, "labor")
	unmarshalJSON(m.VariantsJSON, &promo.Variants, "variants")
	if m.AnalysisJSON != nil {
		var analysis promotion.Analysis
		unmarshalJSON(*m.AnalysisJSON, &analysis, "analysis")
		promo.Analysis = &analysis
	}
	return promo
}

// PromotionModelFromDomain converts a domain Promotion to a persistence model
func PromotionModelFromDomain(promo *promotion.Promotion) *PromotionModel {
	m := &PromotionModel{
		Name:             promo.Name,
		Retailer:         promo.Retailer,
		StartDate:        promo.StartDate,
		EndDate:          promo.EndDate,
		StoreSalePercent: promo.StoreSalePercent,
		PaybackPercent:   promo.PaybackPercent,
		Status:           promo.Status,
		LaborJSON:        marshalJSON(promo.Labor, "[]", "labor"),
		VariantsJSON:     marshalJSON(promo.Variants, "{}", "variants"),
	}
	if promo.Analysis != nil {
		raw := marshalJSON(promo.Analysis, "{}", "analysis")
		m.AnalysisJSON = &raw
	}
	m.FromDomainCompanyAggregateRoot(promo.CompanyAggregateRoot)
	return m
}
