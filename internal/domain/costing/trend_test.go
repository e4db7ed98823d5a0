package costing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(day int, key, cost string) Observation {
	return Observation{
		RecordDate: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Key:        key,
		UnitCost:   amt(cost),
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name string
		obs  []Observation
		want TrendDirection
	}{
		{"increasing", []Observation{obs(1, "oil", "2.00"), obs(5, "oil", "1.50"), obs(9, "oil", "2.40")}, TrendIncreasing},
		{"decreasing", []Observation{obs(1, "oil", "2.40"), obs(9, "oil", "2.00")}, TrendDecreasing},
		{"flat", []Observation{obs(1, "oil", "2.00"), obs(5, "oil", "3.00"), obs(9, "oil", "2.00")}, TrendFlat},
		{"single", []Observation{obs(1, "oil", "2.00")}, TrendFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := ComputeTrend(tt.obs)
			assert.Equal(t, tt.want, trend.Direction)
		})
	}
}

func TestComputeTrendMinMax(t *testing.T) {
	trend := ComputeTrend([]Observation{
		obs(1, "oil", "2.00"),
		obs(5, "oil", "1.50"),
		obs(9, "oil", "2.40"),
	})
	require.NotNil(t, trend.Min)
	require.NotNil(t, trend.Max)
	assert.Equal(t, "1.50", trend.Min.StringFixed2())
	assert.Equal(t, "2.40", trend.Max.StringFixed2())
}

func TestComputeTrendEmpty(t *testing.T) {
	trend := ComputeTrend(nil)
	assert.Equal(t, TrendFlat, trend.Direction)
	assert.Nil(t, trend.Min)
	assert.Nil(t, trend.Max)
}

func TestLatestUnitCosts(t *testing.T) {
	costs := LatestUnitCosts([]Observation{
		obs(1, "oil+8oz", "2.00"),
		obs(9, "oil+8oz", "2.40"),
		obs(5, "oil+8oz", "2.20"),
		obs(3, "wax", "1.10"),
	})

	require.Len(t, costs, 2)
	assert.Equal(t, "2.40", costs["oil+8oz"].StringFixed2())
	assert.Equal(t, "1.10", costs["wax"].StringFixed2())
}
