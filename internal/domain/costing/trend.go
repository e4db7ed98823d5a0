package costing

import (
	"time"

	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// TrendDirection classifies a unit-cost series by comparing its first
// and last observed values. It is deliberately not a regression fit.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendFlat       TrendDirection = "flat"
)

// Observation is one historical unit-cost reading: one per record per
// line-item key, dated by the record
type Observation struct {
	RecordID     string             `json:"record_id"`
	RecordDate   time.Time          `json:"record_date"`
	Key          string             `json:"key"`
	CategoryID   string             `json:"category_id"`
	CategoryName string             `json:"category_name"`
	Variant      string             `json:"variant"`
	UnitCost     valueobject.Amount `json:"unit_cost"`
}

// Trend is the windowed view over one variant's observations
type Trend struct {
	Observations []Observation       `json:"observations"`
	Min          *valueobject.Amount `json:"min"`
	Max          *valueobject.Amount `json:"max"`
	Direction    TrendDirection      `json:"direction"`
}

// ComputeTrend builds the trend over chronologically ordered
// observations. An empty series is flat with no min/max.
func ComputeTrend(observations []Observation) Trend {
	trend := Trend{Observations: observations, Direction: TrendFlat}
	if len(observations) == 0 {
		return trend
	}

	minVal := observations[0].UnitCost
	maxVal := observations[0].UnitCost
	for _, obs := range observations[1:] {
		if obs.UnitCost.LessThan(minVal) {
			minVal = obs.UnitCost
		}
		if maxVal.LessThan(obs.UnitCost) {
			maxVal = obs.UnitCost
		}
	}
	trend.Min = &minVal
	trend.Max = &maxVal

	first := observations[0].UnitCost
	last := observations[len(observations)-1].UnitCost
	switch first.Cmp(last) {
	case -1:
		trend.Direction = TrendIncreasing
	case 1:
		trend.Direction = TrendDecreasing
	}
	return trend
}

// LatestUnitCosts reduces ordered observations to the most recent unit
// cost per key, used to seed downstream calculators without re-deriving
// history
func LatestUnitCosts(observations []Observation) map[string]valueobject.Amount {
	latest := make(map[string]Observation)
	for _, obs := range observations {
		prev, ok := latest[obs.Key]
		if !ok || obs.RecordDate.After(prev.RecordDate) {
			latest[obs.Key] = obs
		}
	}
	out := make(map[string]valueobject.Amount, len(latest))
	for key, obs := range latest {
		out[key] = obs.UnitCost
	}
	return out
}
