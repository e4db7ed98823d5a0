package costing

import (
	"sort"

	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// LineItem is one category+variant purchase on an invoice.
// UnitsReceived defaults to UnitsPurchased when nil; TotalOverride, when
// supplied, replaces the units × price direct cost entirely.
type LineItem struct {
	CategoryID     string              `json:"category_id"`
	CategoryName   string              `json:"category_name"`
	Variant        string              `json:"variant"`
	UnitsPurchased valueobject.Amount  `json:"units_purchased"`
	UnitPrice      valueobject.Amount  `json:"unit_price"`
	UnitsReceived  *valueobject.Amount `json:"units_received,omitempty"`
	TotalOverride  *valueobject.Amount `json:"total_override,omitempty"`
}

// Key returns the synthetic map key for this line item
func (li LineItem) Key() string {
	return BuildKey(li.CategoryName, li.Variant)
}

// DirectCost is units purchased × unit price, or the manual override
// when one was entered
func (li LineItem) DirectCost() valueobject.Amount {
	if li.TotalOverride != nil {
		return *li.TotalOverride
	}
	return li.UnitsPurchased.Mul(li.UnitPrice)
}

// ReconciliationUnits is the divisor for the unit cost: units received,
// defaulting to units purchased
func (li LineItem) ReconciliationUnits() valueobject.Amount {
	if li.UnitsReceived != nil {
		return *li.UnitsReceived
	}
	return li.UnitsPurchased
}

// KeyBreakdown is the fully attributed cost of one line-item key
type KeyBreakdown struct {
	Key               string              `json:"key"`
	CategoryID        string              `json:"category_id"`
	CategoryName      string              `json:"category_name"`
	Variant           string              `json:"variant"`
	DirectCost        valueobject.Amount  `json:"direct_cost"`
	AllocatedOverhead valueobject.Amount  `json:"allocated_overhead"`
	TotalCost         valueobject.Amount  `json:"total_cost"`
	UnitCost          *valueobject.Amount `json:"unit_cost"`
	HasCostData       bool                `json:"has_cost_data"`
}

// AttributionResult is the resolved cost picture for a whole invoice
type AttributionResult struct {
	Breakdown     []KeyBreakdown     `json:"breakdown"`
	TotalDirect   valueobject.Amount `json:"total_direct"`
	TotalOverhead valueobject.Amount `json:"total_overhead"`
	TotalPaid     valueobject.Amount `json:"total_paid"`
}

// UnitCosts returns the per-key unit costs as a map. Keys with no
// resolvable unit cost carry a nil entry so consumers can distinguish
// unknown cost from zero cost.
func (r AttributionResult) UnitCosts() map[string]*valueobject.Amount {
	out := make(map[string]*valueobject.Amount, len(r.Breakdown))
	for _, b := range r.Breakdown {
		out[b.Key] = b.UnitCost
	}
	return out
}

// ResolveAttribution allocates shared overhead across line items in
// proportion to each item's share of total direct spend, then reconciles
// each item's total cost over the units actually received.
//
// All intermediate math runs at full precision; only the final total
// cost, allocated overhead and unit cost of each key are rounded to two
// decimals, so rounding error cannot compound across keys.
func ResolveAttribution(items map[string]LineItem, overheads map[string]valueobject.Amount) AttributionResult {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	totalDirect := valueobject.Zero
	for _, k := range keys {
		totalDirect = totalDirect.Add(items[k].DirectCost())
	}

	totalOverhead := valueobject.Zero
	for _, amount := range overheads {
		totalOverhead = totalOverhead.Add(amount)
	}

	breakdown := make([]KeyBreakdown, 0, len(keys))
	for _, k := range keys {
		item := items[k]
		direct := item.DirectCost()

		// Share of overhead follows share of direct spend. A zero total
		// direct spend allocates nothing: the ratio is 0 by contract.
		allocated := direct.SafeDiv(totalDirect).Mul(totalOverhead)
		total := direct.Add(allocated)

		entry := KeyBreakdown{
			Key:               k,
			CategoryID:        item.CategoryID,
			CategoryName:      item.CategoryName,
			Variant:           item.Variant,
			DirectCost:        direct.Round2(),
			AllocatedOverhead: allocated.Round2(),
			TotalCost:         total.Round2(),
		}

		// Fewer units received than purchased spreads the same total over
		// fewer units, raising the effective unit cost. Zero units
		// received means the cost per unit is unknowable, not zero.
		divisor := item.ReconciliationUnits()
		if divisor.IsPositive() {
			unitCost := total.SafeDiv(divisor).Round2()
			entry.UnitCost = &unitCost
			entry.HasCostData = true
		}

		breakdown = append(breakdown, entry)
	}

	return AttributionResult{
		Breakdown:     breakdown,
		TotalDirect:   totalDirect,
		TotalOverhead: totalOverhead,
		TotalPaid:     totalDirect.Add(totalOverhead).Round2(),
	}
}
