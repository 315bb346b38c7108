package tier

import (
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// UndefinedLabel is returned when no tier matches a price.
const UndefinedLabel = "undefined"

// Resolution represents the outcome of a tier lookup
type Resolution struct {
	Label       string
	Coefficient decimal.Decimal
}

// Resolve scans the tier table in its given order and returns the first tier
// whose half-open interval [min, max) contains price. Tables are expected to
// be sorted by descending minimum price so the highest qualifying bracket
// wins when ranges touch at a boundary; ordering is the caller's contract,
// validated when the table is written, not re-checked here.
//
// An empty table or a price outside every bracket yields coefficient 1 and
// the undefined label. Pure function, no side effects.
func Resolve(tiers []domain.Tier, price decimal.Decimal) Resolution {
	for _, t := range tiers {
		if t.Contains(price) {
			return Resolution{Label: t.Label, Coefficient: t.Coefficient}
		}
	}
	return Resolution{Label: UndefinedLabel, Coefficient: decimal.NewFromInt(1)}
}
