// Package costing holds the purchase-record aggregate and the cost
// attribution math that turns vendor invoices into per-unit production
// costs.
package costing

import (
	"strings"

	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// NormalizeVariant canonicalizes a free-text variant label for matching:
// lowercase with spaces, hyphens and underscores stripped. "8 oz",
// "8-oz" and "8_OZ" all resolve to the same key.
func NormalizeVariant(label string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "_", "")
	return replacer.Replace(strings.ToLower(strings.TrimSpace(label)))
}

// BuildKey derives the synthetic line-item key from a category name and
// an optional variant label: "category+variant", or just "category"
// when the item has no variant.
func BuildKey(categoryName, variant string) string {
	cat := NormalizeVariant(categoryName)
	v := NormalizeVariant(variant)
	if v == "" {
		return cat
	}
	return cat + "+" + v
}

// CostCategory is a user-defined grouping of raw-material spend, such as
// "Oil", optionally subdivided into ordered variant labels ("8oz",
// "16oz").
type CostCategory struct {
	shared.CompanyAggregateRoot
	Name          string   `json:"name"`
	UnitOfMeasure string   `json:"unit_of_measure"`
	Variants      []string `json:"variants"`
}

// NewCostCategory creates a cost category
func NewCostCategory(companyID uuid.UUID, name, unitOfMeasure string, variants []string) (*CostCategory, error) {
	var violations []shared.FieldViolation
	if companyID == uuid.Nil {
		violations = append(violations, shared.FieldViolation{Field: "company_id", Message: "company id is required"})
	}
	if strings.TrimSpace(name) == "" {
		violations = append(violations, shared.FieldViolation{Field: "name", Message: "name is required"})
	}
	if len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	return &CostCategory{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		UnitOfMeasure:        unitOfMeasure,
		Variants:             dedupeVariants(variants),
	}, nil
}

// Rename changes the category name
func (c *CostCategory) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewValidationError([]shared.FieldViolation{
			{Field: "name", Message: "name is required"},
		})
	}
	c.Name = name
	return nil
}

// SetVariants replaces the ordered variant label set, collapsing labels
// that normalize to the same key
func (c *CostCategory) SetVariants(variants []string) {
	c.Variants = dedupeVariants(variants)
}

// HasVariant reports whether the label matches any of the category's
// variants under normalization
func (c *CostCategory) HasVariant(label string) bool {
	want := NormalizeVariant(label)
	for _, v := range c.Variants {
		if NormalizeVariant(v) == want {
			return true
		}
	}
	return false
}

// dedupeVariants keeps the first occurrence of each normalized label,
// preserving order
func dedupeVariants(variants []string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		key := NormalizeVariant(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
