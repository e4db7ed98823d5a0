package promotion

import (
	"testing"

	"github.com/margincraft/backend/internal/domain/shared/margin"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) valueobject.Amount {
	return valueobject.MustAmount(s)
}

func newPromo(t *testing.T, payback string, variants map[string]VariantTerms, labor []LaborEntry) *Promotion {
	t.Helper()
	p, err := NewPromotion(uuid.New(), "Spring Sale", "GreenMart", amt("20"), amt(payback), variants, labor)
	require.NoError(t, err)
	return p
}

func TestAnalyzeBoundaryScenario(t *testing.T) {
	// payback=10%, retail=10.00, base CPU=3.00:
	// promo cost 1.00, cost with promo 4.00, margins 70.00 -> 60.00.
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz": {RetailPrice: amt("10.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("3.00")},
	}, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	require.Len(t, analysis.Variants, 1)
	v := analysis.Variants[0]

	assert.Equal(t, "1.00", v.PromoCostPerUnit.StringFixed2())
	assert.Equal(t, "4.00", v.UnitCostWithPromo.StringFixed2())
	assert.Equal(t, "70.00", v.MarginWithoutPromo.StringFixed2())
	assert.Equal(t, "60.00", v.MarginWithPromo.StringFixed2())
	assert.Equal(t, "-10.00", v.MarginDelta.StringFixed2())
	assert.Equal(t, margin.QualityBetter, v.Quality)
	assert.Equal(t, "100.00", v.TotalPromoCost.StringFixed2())
	assert.Equal(t, "100.00", analysis.TotalPromoCost.StringFixed2())
	assert.Equal(t, margin.RecommendationParticipate, analysis.Recommendation)
}

func TestAnalyzeMarginDeltaRoundsOnce(t *testing.T) {
	// A flat payback percent shifts the margin by exactly that percent,
	// so the delta must be -5.12, not the -5.13 that subtracting the
	// individually rounded margins (66.67 and 61.54) would give.
	p := newPromo(t, "5.123", map[string]VariantTerms{
		"8oz": {RetailPrice: amt("3.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("1.00")},
	}, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	require.Len(t, analysis.Variants, 1)
	v := analysis.Variants[0]

	assert.Equal(t, "66.67", v.MarginWithoutPromo.StringFixed2())
	assert.Equal(t, "61.54", v.MarginWithPromo.StringFixed2())
	assert.Equal(t, "-5.12", v.MarginDelta.StringFixed2())
}

func TestAnalyzeVeto(t *testing.T) {
	// One variant under 40% margin vetoes participation no matter how
	// healthy the others are.
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz":  {RetailPrice: amt("10.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("1.00")},
		"16oz": {RetailPrice: amt("10.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("6.00")},
	}, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	assert.Equal(t, margin.RecommendationDecline, analysis.Recommendation)
	assert.Contains(t, analysis.Reason, "vetoes")
}

func TestAnalyzeNeutralBand(t *testing.T) {
	// Lowest margin in [40,50) -> neutral, reason cites low/high/average.
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz":  {RetailPrice: amt("10.00"), UnitsAvailable: amt("50"), BaseUnitCost: amt("4.50")},
		"16oz": {RetailPrice: amt("10.00"), UnitsAvailable: amt("50"), BaseUnitCost: amt("2.00")},
	}, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	assert.Equal(t, margin.RecommendationNeutral, analysis.Recommendation)
	assert.Contains(t, analysis.Reason, "low 45.00%")
	assert.Contains(t, analysis.Reason, "high 70.00%")
	assert.Contains(t, analysis.Reason, "average 57.50%")
}

func TestAnalyzeZeroPriceSafety(t *testing.T) {
	p := newPromo(t, "10", map[string]VariantTerms{
		"sample": {RetailPrice: amt("0.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("2.00")},
	}, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	v := analysis.Variants[0]
	assert.Equal(t, "0.00", v.MarginWithoutPromo.StringFixed2())
	assert.Equal(t, "0.00", v.MarginWithPromo.StringFixed2())
}

func TestAnalyzeNoVariants(t *testing.T) {
	p := newPromo(t, "10", nil, nil)

	analysis := Analyze(p, margin.DefaultPolicy())
	assert.Empty(t, analysis.Variants)
	assert.Equal(t, margin.RecommendationNeutral, analysis.Recommendation)
	assert.Contains(t, analysis.Reason, "No variant data")
}

func TestAnalyzeLaborAddOn(t *testing.T) {
	// 100 + 100 units; 40.00 actual + 60.00 opportunity labor spreads to
	// a flat 0.50/unit on top of the promo-loaded cost.
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz":  {RetailPrice: amt("10.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("3.00")},
		"16oz": {RetailPrice: amt("20.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("5.00")},
	}, []LaborEntry{
		{Name: "Demo staff", Kind: LaborActual, Hours: amt("4"), Rate: amt("10.00")},
		{Name: "Owner time", Kind: LaborOpportunity, Hours: amt("2"), Rate: amt("30.00")},
	})

	analysis := Analyze(p, margin.DefaultPolicy())
	assert.Equal(t, "40.00", analysis.TotalActualLabor.StringFixed2())
	assert.Equal(t, "60.00", analysis.TotalOpportunityLabor.StringFixed2())

	require.Len(t, analysis.Variants, 2)
	for _, v := range analysis.Variants {
		require.NotNil(t, v.TotalCostWithLabor, "variant %s", v.Variant)
		require.NotNil(t, v.MarginWithLabor, "variant %s", v.Variant)
	}

	byVariant := map[string]VariantResult{}
	for _, v := range analysis.Variants {
		byVariant[v.Variant] = v
	}

	small := byVariant["8oz"]
	// 3.00 base + 1.00 promo + 0.50 labor = 4.50; margin (10-4.5)/10 = 55%.
	assert.Equal(t, "4.50", small.TotalCostWithLabor.StringFixed2())
	assert.Equal(t, "55.00", small.MarginWithLabor.StringFixed2())
	// The labor-loaded margin is the decisive one.
	assert.Equal(t, "55.00", small.DecisiveMargin().StringFixed2())

	assert.Equal(t, margin.RecommendationParticipate, analysis.Recommendation)
}

func TestAnalyzeLaborMarginDrivesRecommendation(t *testing.T) {
	// With-promo margin is 60% but heavy labor pushes the decisive
	// margin under 40, forcing a decline.
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz": {RetailPrice: amt("10.00"), UnitsAvailable: amt("10"), BaseUnitCost: amt("3.00")},
	}, []LaborEntry{
		{Name: "Demo staff", Kind: LaborActual, Hours: amt("5"), Rate: amt("5.00")},
	})

	analysis := Analyze(p, margin.DefaultPolicy())
	v := analysis.Variants[0]
	assert.Equal(t, "60.00", v.MarginWithPromo.StringFixed2())
	// labor 25.00 / 10 units = 2.50/unit; cost 6.50; margin 35%.
	assert.Equal(t, "35.00", v.MarginWithLabor.StringFixed2())
	assert.Equal(t, margin.RecommendationDecline, analysis.Recommendation)
}

func TestAnalyzeIsRerunnable(t *testing.T) {
	p := newPromo(t, "15", map[string]VariantTerms{
		"8oz": {RetailPrice: amt("12.00"), UnitsAvailable: amt("40"), BaseUnitCost: amt("3.60")},
	}, nil)

	first := Analyze(p, margin.DefaultPolicy())
	second := Analyze(p, margin.DefaultPolicy())

	assert.Equal(t, first.Variants, second.Variants)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.TotalPromoCost, second.TotalPromoCost)
}

func TestCompareRequiresAnalysis(t *testing.T) {
	p := newPromo(t, "10", map[string]VariantTerms{
		"8oz": {RetailPrice: amt("10.00"), UnitsAvailable: amt("100"), BaseUnitCost: amt("3.00")},
	}, nil)

	_, err := p.Compare()
	require.Error(t, err)

	analysis := Analyze(p, margin.DefaultPolicy())
	p.Analysis = &analysis

	comparison, err := p.Compare()
	require.NoError(t, err)
	assert.Equal(t, "70.00", comparison.WithoutPromo.AverageMargin.StringFixed2())
	assert.Equal(t, "60.00", comparison.WithPromo.AverageMargin.StringFixed2())
	assert.Equal(t, "300.00", comparison.WithoutPromo.TotalCost.StringFixed2())
	assert.Equal(t, "400.00", comparison.WithPromo.TotalCost.StringFixed2())
}
