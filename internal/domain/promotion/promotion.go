// Package promotion holds the trade-promotion aggregate and the margin
// analysis that produces participate/decline recommendations.
package promotion

import (
	"fmt"
	"strings"
	"time"

	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a promotion. Transitions are
// caller-driven; the analyzer never moves a promotion between states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusDeclined  Status = "DECLINED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusDeclined, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the move to next is allowed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusApproved || next == StatusDeclined
	case StatusApproved:
		return next == StatusActive
	case StatusActive:
		return next == StatusCompleted
	}
	return false
}

// LaborKind tags a labor entry as a cash cost or the owner's time
type LaborKind string

const (
	LaborActual      LaborKind = "actual"
	LaborOpportunity LaborKind = "opportunity"
)

// LaborEntry is one demo/labor commitment attached to a promotion
type LaborEntry struct {
	Name  string             `json:"name"`
	Kind  LaborKind          `json:"kind"`
	Hours valueobject.Amount `json:"hours"`
	Rate  valueobject.Amount `json:"rate"`
}

// Cost is hours × rate at full precision
func (e LaborEntry) Cost() valueobject.Amount {
	return e.Hours.Mul(e.Rate)
}

// VariantTerms carries the per-variant economics of a promotion
type VariantTerms struct {
	RetailPrice    valueobject.Amount `json:"retail_price"`
	UnitsAvailable valueobject.Amount `json:"units_available"`
	BaseUnitCost   valueobject.Amount `json:"base_unit_cost"`
}

// Promotion is one proposed or decided trade-spend event. The store-sale
// percentage is the customer-facing discount and is informational only;
// producer-side math runs off the payback percentage.
type Promotion struct {
	shared.CompanyAggregateRoot
	Name             string                  `json:"name"`
	Retailer         string                  `json:"retailer"`
	StartDate        *time.Time              `json:"start_date"`
	EndDate          *time.Time              `json:"end_date"`
	StoreSalePercent valueobject.Amount      `json:"store_sale_percent"`
	PaybackPercent   valueobject.Amount      `json:"payback_percent"`
	Labor            []LaborEntry            `json:"labor"`
	Variants         map[string]VariantTerms `json:"variants"`
	Status           Status                  `json:"status"`
	Analysis         *Analysis               `json:"analysis"`
}

// NewPromotion validates required fields and creates a draft promotion
func NewPromotion(
	companyID uuid.UUID,
	name, retailer string,
	storeSalePercent, paybackPercent valueobject.Amount,
	variants map[string]VariantTerms,
	labor []LaborEntry,
) (*Promotion, error) {
	if violations := validatePromoFields(companyID, name, retailer, paybackPercent, labor); len(violations) > 0 {
		return nil, shared.NewValidationError(violations)
	}

	return &Promotion{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Name:                 name,
		Retailer:             retailer,
		StoreSalePercent:     storeSalePercent,
		PaybackPercent:       paybackPercent,
		Labor:                labor,
		Variants:             cloneVariants(variants),
		Status:               StatusDraft,
	}, nil
}

// Update is a merge of partial promotion fields
type Update struct {
	Name             *string
	Retailer         *string
	StartDate        *time.Time
	EndDate          *time.Time
	StoreSalePercent *valueobject.Amount
	PaybackPercent   *valueobject.Amount
	Labor            []LaborEntry
	Variants         map[string]VariantTerms
}

// Apply merges the update, re-validates, and bumps the editor's counter.
// Any prior analysis becomes stale and is cleared; re-running the
// analysis overwrites the computed outputs.
func (p *Promotion) Apply(update Update, editorID string) error {
	name := p.Name
	if update.Name != nil {
		name = *update.Name
	}
	retailer := p.Retailer
	if update.Retailer != nil {
		retailer = *update.Retailer
	}
	payback := p.PaybackPercent
	if update.PaybackPercent != nil {
		payback = *update.PaybackPercent
	}
	labor := p.Labor
	if update.Labor != nil {
		labor = update.Labor
	}

	if violations := validatePromoFields(p.CompanyID, name, retailer, payback, labor); len(violations) > 0 {
		return shared.NewValidationError(violations)
	}

	p.Name = name
	p.Retailer = retailer
	p.PaybackPercent = payback
	p.Labor = labor
	if update.StartDate != nil {
		p.StartDate = update.StartDate
	}
	if update.EndDate != nil {
		p.EndDate = update.EndDate
	}
	if update.StoreSalePercent != nil {
		p.StoreSalePercent = *update.StoreSalePercent
	}
	if update.Variants != nil {
		p.Variants = cloneVariants(update.Variants)
	}
	p.Analysis = nil
	p.TouchEditor(editorID)
	return nil
}

// TransitionTo moves the promotion through its lifecycle
func (p *Promotion) TransitionTo(next Status) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown promotion status %q", next))
	}
	if !p.Status.CanTransitionTo(next) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot move promotion from %s to %s", p.Status, next))
	}
	p.Status = next
	p.UpdatedAt = time.Now()
	return nil
}

// IsAnalyzed reports whether analysis outputs exist on the record
func (p *Promotion) IsAnalyzed() bool {
	return p.Analysis != nil
}

func validatePromoFields(companyID uuid.UUID, name, retailer string, paybackPercent valueobject.Amount, labor []LaborEntry) []shared.FieldViolation {
	var violations []shared.FieldViolation
	if companyID == uuid.Nil {
		violations = append(violations, shared.FieldViolation{Field: "company_id", Message: "company id is required"})
	}
	if strings.TrimSpace(name) == "" {
		violations = append(violations, shared.FieldViolation{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(retailer) == "" {
		violations = append(violations, shared.FieldViolation{Field: "retailer", Message: "retailer is required"})
	}
	if paybackPercent.IsNegative() {
		violations = append(violations, shared.FieldViolation{Field: "payback_percent", Message: "payback percent cannot be negative"})
	}
	for i, entry := range labor {
		if entry.Kind != LaborActual && entry.Kind != LaborOpportunity {
			violations = append(violations, shared.FieldViolation{
				Field:   fmt.Sprintf("labor[%d].kind", i),
				Message: "labor kind must be actual or opportunity",
			})
		}
		if entry.Hours.IsNegative() || entry.Rate.IsNegative() {
			violations = append(violations, shared.FieldViolation{
				Field:   fmt.Sprintf("labor[%d]", i),
				Message: "labor hours and rate cannot be negative",
			})
		}
	}
	return violations
}

func cloneVariants(variants map[string]VariantTerms) map[string]VariantTerms {
	out := make(map[string]VariantTerms, len(variants))
	for label, terms := range variants {
		out[label] = terms
	}
	return out
}
