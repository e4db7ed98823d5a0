// Package margin holds the margin-quality banding and recommendation
// thresholds shared by the cost and promotion calculators. Keeping them
// in one policy object means the band edges can never drift apart
// between the two.
package margin

import (
	"github.com/margincraft/backend/internal/domain/shared"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
)

// Quality is a four-tier margin quality band
type Quality string

const (
	QualityPoor   Quality = "poor"
	QualityGood   Quality = "good"
	QualityBetter Quality = "better"
	QualityBest   Quality = "best"
)

// String returns the canonical label
func (q Quality) String() string {
	return string(q)
}

// LegacyLabel returns the label set used by older report consumers,
// which named the lowest band "gutCheck" instead of "poor".
func (q Quality) LegacyLabel() string {
	if q == QualityPoor {
		return "gutCheck"
	}
	return string(q)
}

// Recommendation is the participate/decline verdict for a promotion
type Recommendation string

const (
	RecommendationParticipate Recommendation = "participate"
	RecommendationDecline     Recommendation = "decline"
	RecommendationNeutral     Recommendation = "neutral"
)

// Policy carries every margin threshold used by the engine. Band edges
// are inclusive on the lower side: a margin of exactly GoodAt classifies
// as good, exactly BestAt as best.
type Policy struct {
	// Quality band edges, ascending
	GoodAt   valueobject.Amount
	BetterAt valueobject.Amount
	BestAt   valueobject.Amount

	// Recommendation cutoffs over a promotion's lowest variant margin
	DeclineBelow  valueobject.Amount
	ParticipateAt valueobject.Amount
}

// DefaultPolicy returns the hard-coded business defaults:
// bands at 50/60/70, decline below 40, participate at 50.
func DefaultPolicy() Policy {
	return Policy{
		GoodAt:        valueobject.NewAmountFromInt(50),
		BetterAt:      valueobject.NewAmountFromInt(60),
		BestAt:        valueobject.NewAmountFromInt(70),
		DeclineBelow:  valueobject.NewAmountFromInt(40),
		ParticipateAt: valueobject.NewAmountFromInt(50),
	}
}

// NewPolicy builds a company-configured policy. Thresholds must be
// strictly ascending; recommendation cutoffs must be ordered and the
// participate cutoff may not exceed the good band edge.
func NewPolicy(goodAt, betterAt, bestAt, declineBelow, participateAt valueobject.Amount) (Policy, error) {
	if !betterAt.Decimal().GreaterThan(goodAt.Decimal()) || !bestAt.Decimal().GreaterThan(betterAt.Decimal()) {
		return Policy{}, shared.NewDomainError("INVALID_THRESHOLDS", "Quality band edges must be strictly ascending")
	}
	if !participateAt.Decimal().GreaterThan(declineBelow.Decimal()) {
		return Policy{}, shared.NewDomainError("INVALID_THRESHOLDS", "Participate cutoff must exceed decline cutoff")
	}
	return Policy{
		GoodAt:        goodAt,
		BetterAt:      betterAt,
		BestAt:        bestAt,
		DeclineBelow:  declineBelow,
		ParticipateAt: participateAt,
	}, nil
}

// Classify maps a margin percentage to its quality band
func (p Policy) Classify(marginPercent valueobject.Amount) Quality {
	switch {
	case marginPercent.GreaterThanOrEqual(p.BestAt):
		return QualityBest
	case marginPercent.GreaterThanOrEqual(p.BetterAt):
		return QualityBetter
	case marginPercent.GreaterThanOrEqual(p.GoodAt):
		return QualityGood
	default:
		return QualityPoor
	}
}

// Recommend derives the verdict from the lowest margin observed across
// all of a promotion's variants. A single variant below the decline
// cutoff vetoes participation regardless of the others.
func (p Policy) Recommend(lowestMargin valueobject.Amount) Recommendation {
	switch {
	case lowestMargin.LessThan(p.DeclineBelow):
		return RecommendationDecline
	case lowestMargin.GreaterThanOrEqual(p.ParticipateAt):
		return RecommendationParticipate
	default:
		return RecommendationNeutral
	}
}
