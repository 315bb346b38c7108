package tier

import (
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// Standard Fibonacci retracement ratios, top (ATH) to bottom (low).
var fibonacciRatios = []decimal.Decimal{
	decimal.RequireFromString("0"),
	decimal.RequireFromString("0.236"),
	decimal.RequireFromString("0.382"),
	decimal.RequireFromString("0.5"),
	decimal.RequireFromString("0.618"),
	decimal.RequireFromString("0.786"),
	decimal.RequireFromString("1"),
}

// ladderSize is the number of tiers a generated table always has: one
// bracket above the ATH, one below the low, and one per retracement band.
var ladderSize = len(fibonacciRatios) + 1

// Ladder is the coefficient policy applied to a generated table, ordered
// from the above-ATH bracket down to the below-low bracket. The ladder is a
// policy constant, not derived math, so callers may supply their own.
type Ladder struct {
	Labels       []string
	Coefficients []decimal.Decimal
}

// DefaultLadder returns the stock policy: buy nothing above the all-time
// high, scale up to double weight under the low.
func DefaultLadder() Ladder {
	return Ladder{
		Labels: []string{
			"Au-dessus ATH",
			"Très haut",
			"Haut",
			"Normal haut",
			"Normal bas",
			"Bas",
			"Très bas",
			"Sous le plancher",
		},
		Coefficients: []decimal.Decimal{
			decimal.RequireFromString("0"),
			decimal.RequireFromString("0.25"),
			decimal.RequireFromString("0.5"),
			decimal.RequireFromString("0.75"),
			decimal.RequireFromString("1"),
			decimal.RequireFromString("1.25"),
			decimal.RequireFromString("1.5"),
			decimal.RequireFromString("2"),
		},
	}
}

// Validate ensures the ladder adheres to the generated table shape
// Returns an error if validation fails
func (l Ladder) Validate() error {
	if len(l.Labels) != ladderSize || len(l.Coefficients) != ladderSize {
		return domain.ValidationError("coefficient ladder must have exactly 8 entries")
	}
	prev := decimal.NewFromInt(-1)
	for _, c := range l.Coefficients {
		if c.IsNegative() {
			return domain.ValidationError("ladder coefficients cannot be negative")
		}
		if c.LessThan(prev) {
			return domain.ValidationError("ladder coefficients must not decrease from top to bottom")
		}
		prev = c
	}
	return nil
}

// GenerateFibonacci builds a full tier table from an all-time-high and a low
// reference price. Retracement levels are computed as ath - (ath-low)*ratio;
// the resulting table spans from an unbounded bracket above the ATH down to
// a bracket below the low, sorted by descending minimum price as the
// resolver expects. No partial table is ever produced: invalid inputs reject
// the whole generation.
func GenerateFibonacci(ath, low decimal.Decimal, ladder Ladder) ([]domain.Tier, error) {
	if !low.IsPositive() {
		return nil, domain.ValidationError("low price must be positive")
	}
	if !ath.GreaterThan(low) {
		return nil, domain.ValidationError("all-time-high must be greater than the low price")
	}
	if err := ladder.Validate(); err != nil {
		return nil, err
	}

	span := ath.Sub(low)
	levels := make([]decimal.Decimal, len(fibonacciRatios))
	for i, ratio := range fibonacciRatios {
		levels[i] = ath.Sub(span.Mul(ratio))
	}

	tiers := make([]domain.Tier, 0, ladderSize)

	// Top bracket: everything at or above the ATH, no upper bound.
	tiers = append(tiers, domain.Tier{
		Label:       ladder.Labels[0],
		MinPrice:    levels[0],
		MaxPrice:    nil,
		Coefficient: ladder.Coefficients[0],
	})

	// One bracket per retracement band, [level(i+1), level(i)).
	for i := 1; i < len(levels); i++ {
		upper := levels[i-1]
		tiers = append(tiers, domain.Tier{
			Label:       ladder.Labels[i],
			MinPrice:    levels[i],
			MaxPrice:    &upper,
			Coefficient: ladder.Coefficients[i],
		})
	}

	// Bottom bracket: everything under the low.
	floor := levels[len(levels)-1]
	tiers = append(tiers, domain.Tier{
		Label:       ladder.Labels[ladderSize-1],
		MinPrice:    decimal.Zero,
		MaxPrice:    &floor,
		Coefficient: ladder.Coefficients[ladderSize-1],
	})

	return tiers, nil
}
