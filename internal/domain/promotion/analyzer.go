package promotion

import (
	"fmt"
	"sort"
	"time"

	"github.com/margincraft/backend/internal/domain/shared/margin"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// VariantResult is the per-variant outcome of a promotion analysis.
// All margin and cost fields are rounded to 2 decimals.
type VariantResult struct {
	Variant            string              `json:"variant"`
	PromoCostPerUnit   valueobject.Amount  `json:"promo_cost_per_unit"`
	UnitCostWithPromo  valueobject.Amount  `json:"unit_cost_with_promo"`
	MarginWithoutPromo valueobject.Amount  `json:"margin_without_promo"`
	MarginWithPromo    valueobject.Amount  `json:"margin_with_promo"`
	MarginDelta        valueobject.Amount  `json:"margin_delta"`
	TotalCostWithLabor *valueobject.Amount `json:"total_cost_with_labor,omitempty"`
	MarginWithLabor    *valueobject.Amount `json:"margin_with_labor,omitempty"`
	Quality            margin.Quality      `json:"quality"`
	TotalPromoCost     valueobject.Amount  `json:"total_promo_cost"`
}

// DecisiveMargin is the margin that feeds the recommendation: the
// labor-loaded margin when labor entries exist, otherwise the
// with-promo margin
func (v VariantResult) DecisiveMargin() valueobject.Amount {
	if v.MarginWithLabor != nil {
		return *v.MarginWithLabor
	}
	return v.MarginWithPromo
}

// Analysis is the computed output persisted onto the promotion record
type Analysis struct {
	Variants              []VariantResult       `json:"variants"`
	TotalPromoCost        valueobject.Amount    `json:"total_promo_cost"`
	TotalActualLabor      valueobject.Amount    `json:"total_actual_labor"`
	TotalOpportunityLabor valueobject.Amount    `json:"total_opportunity_labor"`
	Recommendation        margin.Recommendation `json:"recommendation"`
	Reason                string                `json:"reason"`
	AnalyzedAt            time.Time             `json:"analyzed_at"`
}

// Analyze computes the promotional cost and margins of every variant,
// then derives a recommendation from the lowest decisive margin across
// all of them. Re-running it on the same inputs yields the same numbers.
func Analyze(p *Promotion, policy margin.Policy) Analysis {
	analysis := Analysis{AnalyzedAt: time.Now()}

	labels := make([]string, 0, len(p.Variants))
	for label := range p.Variants {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	if len(labels) == 0 {
		analysis.Recommendation = margin.RecommendationNeutral
		analysis.Reason = "No variant data supplied; nothing to analyze"
		return analysis
	}

	totalUnits := valueobject.Zero
	for _, label := range labels {
		totalUnits = totalUnits.Add(p.Variants[label].UnitsAvailable)
	}

	// Labor costs are summed per kind, then spread flat across the
	// total units available over all variants.
	actualLabor := valueobject.Zero
	opportunityLabor := valueobject.Zero
	for _, entry := range p.Labor {
		if entry.Kind == LaborActual {
			actualLabor = actualLabor.Add(entry.Cost())
		} else {
			opportunityLabor = opportunityLabor.Add(entry.Cost())
		}
	}
	analysis.TotalActualLabor = actualLabor.Round2()
	analysis.TotalOpportunityLabor = opportunityLabor.Round2()
	laborPerUnit := actualLabor.Add(opportunityLabor).SafeDiv(totalUnits)
	hasLabor := len(p.Labor) > 0

	totalPromoCost := valueobject.Zero
	for _, label := range labels {
		terms := p.Variants[label]

		promoCostPerUnit := terms.RetailPrice.Percent(p.PaybackPercent)
		unitCostWithPromo := terms.BaseUnitCost.Add(promoCostPerUnit)

		// Margins stay at full precision until each output field is
		// rounded on its own; a delta of rounded margins can drift a
		// cent from the rounded true delta.
		marginWithout := terms.RetailPrice.Sub(terms.BaseUnitCost).SafeRatio(terms.RetailPrice)
		marginWith := terms.RetailPrice.Sub(unitCostWithPromo).SafeRatio(terms.RetailPrice)

		result := VariantResult{
			Variant:            label,
			PromoCostPerUnit:   promoCostPerUnit.Round2(),
			UnitCostWithPromo:  unitCostWithPromo.Round2(),
			MarginWithoutPromo: marginWithout.Round2(),
			MarginWithPromo:    marginWith.Round2(),
			MarginDelta:        marginWith.Sub(marginWithout).Round2(),
			Quality:            policy.Classify(marginWith.Round2()),
			TotalPromoCost:     promoCostPerUnit.Mul(terms.UnitsAvailable).Round2(),
		}

		if hasLabor {
			costWithLabor := unitCostWithPromo.Add(laborPerUnit).Round2()
			marginWithLabor := terms.RetailPrice.Sub(unitCostWithPromo.Add(laborPerUnit)).SafeRatio(terms.RetailPrice).Round2()
			result.TotalCostWithLabor = &costWithLabor
			result.MarginWithLabor = &marginWithLabor
		}

		totalPromoCost = totalPromoCost.Add(promoCostPerUnit.Mul(terms.UnitsAvailable))
		analysis.Variants = append(analysis.Variants, result)
	}
	analysis.TotalPromoCost = totalPromoCost.Round2()

	lowest, highest, average := marginSpread(analysis.Variants)
	analysis.Recommendation = policy.Recommend(lowest)
	switch analysis.Recommendation {
	case margin.RecommendationDecline:
		analysis.Reason = fmt.Sprintf("Lowest variant margin %s%% falls below %s%%; one unprofitable variant vetoes participation",
			lowest.StringFixed2(), policy.DeclineBelow.StringFixed2())
	case margin.RecommendationParticipate:
		analysis.Reason = fmt.Sprintf("Every variant margin stays at or above %s%% (lowest %s%%)",
			policy.ParticipateAt.StringFixed2(), lowest.StringFixed2())
	default:
		analysis.Reason = fmt.Sprintf("Margins need review: low %s%%, high %s%%, average %s%%",
			lowest.StringFixed2(), highest.StringFixed2(), average.StringFixed2())
	}

	return analysis
}

// marginSpread returns the lowest, highest and average decisive margin
func marginSpread(variants []VariantResult) (lowest, highest, average valueobject.Amount) {
	lowest = variants[0].DecisiveMargin()
	highest = lowest
	sum := valueobject.Zero
	for _, v := range variants {
		m := v.DecisiveMargin()
		if m.LessThan(lowest) {
			lowest = m
		}
		if highest.LessThan(m) {
			highest = m
		}
		sum = sum.Add(m)
	}
	average = sum.SafeDiv(valueobject.NewAmountFromInt(int64(len(variants)))).Round2()
	return lowest, highest, average
}

// ComparisonSide aggregates one side of a with/without-promo comparison
type ComparisonSide struct {
	AverageMargin valueobject.Amount `json:"average_margin"`
	MinMargin     valueobject.Amount `json:"min_margin"`
	MaxMargin     valueobject.Amount `json:"max_margin"`
	TotalCost     valueobject.Amount `json:"total_cost"`
}

// Comparison is the with/without-promo statistics recomputed from a
// previously stored analysis
type Comparison struct {
	WithPromo    ComparisonSide `json:"with_promo"`
	WithoutPromo ComparisonSide `json:"without_promo"`
}

// Compare recomputes aggregate with/without-promo statistics from the
// stored analysis. The with-promo side uses the labor-loaded cost and
// margin where labor was modeled.
func (p *Promotion) Compare() (Comparison, error) {
	if !p.IsAnalyzed() {
		return Comparison{}, ErrNotAnalyzed()
	}

	var comparison Comparison
	if len(p.Analysis.Variants) == 0 {
		return comparison, nil
	}

	withMargins := make([]valueobject.Amount, 0, len(p.Analysis.Variants))
	withoutMargins := make([]valueobject.Amount, 0, len(p.Analysis.Variants))
	withCost := valueobject.Zero
	withoutCost := valueobject.Zero

	for _, v := range p.Analysis.Variants {
		terms := p.Variants[v.Variant]
		withMargins = append(withMargins, v.DecisiveMargin())
		withoutMargins = append(withoutMargins, v.MarginWithoutPromo)

		unitCost := v.UnitCostWithPromo
		if v.TotalCostWithLabor != nil {
			unitCost = *v.TotalCostWithLabor
		}
		withCost = withCost.Add(unitCost.Mul(terms.UnitsAvailable))
		withoutCost = withoutCost.Add(terms.BaseUnitCost.Mul(terms.UnitsAvailable))
	}

	comparison.WithPromo = summarizeSide(withMargins, withCost)
	comparison.WithoutPromo = summarizeSide(withoutMargins, withoutCost)
	return comparison, nil
}

func summarizeSide(margins []valueobject.Amount, totalCost valueobject.Amount) ComparisonSide {
	minM := margins[0]
	maxM := margins[0]
	sum := valueobject.Zero
	for _, m := range margins {
		if m.LessThan(minM) {
			minM = m
		}
		if maxM.LessThan(m) {
			maxM = m
		}
		sum = sum.Add(m)
	}
	return ComparisonSide{
		AverageMargin: sum.SafeDiv(valueobject.NewAmountFromInt(int64(len(margins)))).Round2(),
		MinMargin:     minM,
		MaxMargin:     maxM,
		TotalCost:     totalCost.Round2(),
	}
}
