package costing

import (
	"testing"

	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) valueobject.Amount {
	return valueobject.MustAmount(s)
}

func amtPtr(s string) *valueobject.Amount {
	a := valueobject.MustAmount(s)
	return &a
}

func TestResolveAttributionProportionalSplit(t *testing.T) {
	// Two line items with direct costs 200.00 and 300.00 sharing 100.00
	// overhead must split it 40/60, giving unit costs 2.40 and 3.60 for
	// 100 units each.
	items := map[string]LineItem{
		"oil": {
			CategoryID:     "cat-oil",
			CategoryName:   "Oil",
			UnitsPurchased: amt("100"),
			UnitPrice:      amt("2.00"),
		},
		"wax": {
			CategoryID:     "cat-wax",
			CategoryName:   "Wax",
			UnitsPurchased: amt("100"),
			UnitPrice:      amt("3.00"),
		},
	}
	overheads := map[string]valueobject.Amount{"Shipping": amt("100.00")}

	result := ResolveAttribution(items, overheads)

	require.Len(t, result.Breakdown, 2)
	byKey := make(map[string]KeyBreakdown)
	for _, b := range result.Breakdown {
		byKey[b.Key] = b
	}

	oil := byKey["oil"]
	assert.Equal(t, "200.00", oil.DirectCost.StringFixed2())
	assert.Equal(t, "40.00", oil.AllocatedOverhead.StringFixed2())
	assert.Equal(t, "240.00", oil.TotalCost.StringFixed2())
	require.NotNil(t, oil.UnitCost)
	assert.Equal(t, "2.40", oil.UnitCost.StringFixed2())

	wax := byKey["wax"]
	assert.Equal(t, "60.00", wax.AllocatedOverhead.StringFixed2())
	require.NotNil(t, wax.UnitCost)
	assert.Equal(t, "3.60", wax.UnitCost.StringFixed2())

	assert.Equal(t, "600.00", result.TotalPaid.StringFixed2())
}

func TestResolveAttributionExactness(t *testing.T) {
	// units=3, price="0.1" must yield total_paid "0.30", never binary
	// float residue.
	items := map[string]LineItem{
		"oil": {
			CategoryName:   "Oil",
			UnitsPurchased: amt("3"),
			UnitPrice:      amt("0.1"),
		},
	}

	result := ResolveAttribution(items, nil)
	assert.Equal(t, "0.30", result.TotalPaid.StringFixed2())
	require.NotNil(t, result.Breakdown[0].UnitCost)
	assert.Equal(t, "0.10", result.Breakdown[0].UnitCost.StringFixed2())
}

func TestResolveAttributionConservation(t *testing.T) {
	// Allocated overhead across all keys must equal the overhead total
	// to within the final 2-decimal rounding.
	items := map[string]LineItem{
		"a": {CategoryName: "A", UnitsPurchased: amt("7"), UnitPrice: amt("1.37")},
		"b": {CategoryName: "B", UnitsPurchased: amt("13"), UnitPrice: amt("0.73")},
		"c": {CategoryName: "C", UnitsPurchased: amt("29"), UnitPrice: amt("2.11")},
	}
	overheads := map[string]valueobject.Amount{
		"Shipping": amt("53.17"),
		"Tariff":   amt("11.03"),
	}

	result := ResolveAttribution(items, overheads)

	allocated := valueobject.Zero
	for _, b := range result.Breakdown {
		allocated = allocated.Add(b.AllocatedOverhead)
	}
	diff := allocated.Sub(amt("64.20"))
	assert.True(t, !diff.Decimal().Abs().GreaterThan(amt("0.02").Decimal()),
		"allocated %s deviates from overhead total by more than rounding", allocated.StringFixed2())
}

func TestResolveAttributionZeroDirectSpend(t *testing.T) {
	// With zero total direct cost no overhead is allocated: the share
	// ratio is 0 by contract.
	items := map[string]LineItem{
		"free": {CategoryName: "Free", UnitsPurchased: amt("10"), UnitPrice: amt("0")},
	}
	overheads := map[string]valueobject.Amount{"Shipping": amt("25.00")}

	result := ResolveAttribution(items, overheads)
	assert.Equal(t, "0.00", result.Breakdown[0].AllocatedOverhead.StringFixed2())
	require.NotNil(t, result.Breakdown[0].UnitCost)
	assert.Equal(t, "0.00", result.Breakdown[0].UnitCost.StringFixed2())
	assert.Equal(t, "25.00", result.TotalPaid.StringFixed2())
}

func TestResolveAttributionReconciliation(t *testing.T) {
	// Shrinkage: the same total cost over fewer received units raises
	// the unit cost, monotonically.
	base := LineItem{
		CategoryName:   "Oil",
		UnitsPurchased: amt("100"),
		UnitPrice:      amt("2.00"),
	}

	prev := valueobject.Zero
	for _, received := range []string{"100", "80", "50", "25"} {
		item := base
		item.UnitsReceived = amtPtr(received)
		result := ResolveAttribution(map[string]LineItem{"oil": item}, nil)
		require.NotNil(t, result.Breakdown[0].UnitCost)
		cost := *result.Breakdown[0].UnitCost
		assert.True(t, cost.GreaterThanOrEqual(prev),
			"unit cost %s decreased with fewer units received", cost.StringFixed2())
		prev = cost
	}
}

func TestResolveAttributionZeroUnitsReceived(t *testing.T) {
	item := LineItem{
		CategoryName:   "Oil",
		UnitsPurchased: amt("10"),
		UnitPrice:      amt("2.00"),
		UnitsReceived:  amtPtr("0"),
	}
	result := ResolveAttribution(map[string]LineItem{"oil": item}, nil)

	// Cost per unit is unknown, not zero.
	assert.Nil(t, result.Breakdown[0].UnitCost)
	assert.False(t, result.Breakdown[0].HasCostData)
	assert.Equal(t, "20.00", result.TotalPaid.StringFixed2())
}

func TestLineItemManualOverride(t *testing.T) {
	item := LineItem{
		CategoryName:   "Oil",
		UnitsPurchased: amt("10"),
		UnitPrice:      amt("2.00"),
		TotalOverride:  amtPtr("25.00"),
	}
	assert.Equal(t, "25.00", item.DirectCost().StringFixed2())
}

func TestNormalizeVariant(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"8oz", "8oz"},
		{"8 oz", "8oz"},
		{"8-OZ", "8oz"},
		{"8_Oz ", "8oz"},
		{"  Small Batch ", "smallbatch"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeVariant(tt.input), "input %q", tt.input)
	}
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "oil+8oz", BuildKey("Oil", "8 oz"))
	assert.Equal(t, "oil", BuildKey("Oil", ""))
}
