package domain

import (
	"github.com/shopspring/decimal"
)

// AllocationTolerance is the margin under which the sum of allocation
// percentages is considered equal to 100.
var AllocationTolerance = decimal.NewFromFloat(0.01)

// Tier represents one price bracket of an asset's coefficient table.
// A price belongs to the tier when MinPrice <= price < MaxPrice; a nil
// MaxPrice means the bracket has no upper bound. The unbounded form only
// becomes a serialized null at the persistence boundary.
type Tier struct {
	Label       string
	MinPrice    decimal.Decimal
	MaxPrice    *decimal.Decimal // nil = no upper bound
	Coefficient decimal.Decimal
}

// Contains reports whether price falls inside the tier's half-open interval.
func (t Tier) Contains(price decimal.Decimal) bool {
	if price.LessThan(t.MinPrice) {
		return false
	}
	return t.MaxPrice == nil || price.LessThan(*t.MaxPrice)
}

// Validate ensures the tier adheres to domain rules
// Returns an error if validation fails
func (t Tier) Validate() error {
	if t.MinPrice.IsNegative() {
		return ValidationError("tier minimum price cannot be negative")
	}
	if t.MaxPrice != nil && !t.MaxPrice.GreaterThan(t.MinPrice) {
		return ValidationError("tier maximum price must be greater than its minimum price")
	}
	if t.Coefficient.IsNegative() {
		return ValidationError("tier coefficient cannot be negative")
	}
	return nil
}

// Asset represents one tracked cryptocurrency: its allocation share of the
// weekly budget, its coefficient tiers and its append-only purchase history.
type Asset struct {
	ID                string // persistence document ID, e.g. "btc"
	DisplayName       string
	ProviderID        string // symbol understood by the price providers, e.g. "bitcoin"
	AllocationPercent decimal.Decimal
	ReferencePrice    decimal.Decimal // last known price in the primary quote currency
	Tiers             []Tier          // kept sorted by descending MinPrice
	History           []Purchase
}

// Validate ensures the asset adheres to domain rules
// Returns an error if validation fails
func (a *Asset) Validate() error {
	if a.ID == "" {
		return ValidationError("asset ID cannot be empty")
	}
	if a.ProviderID == "" {
		return ValidationError("asset provider ID cannot be empty")
	}
	if a.AllocationPercent.IsNegative() || a.AllocationPercent.GreaterThan(decimal.NewFromInt(100)) {
		return ValidationError("allocation percent must be between 0 and 100")
	}
	if len(a.Tiers) == 0 {
		return ValidationError("asset must keep at least one tier")
	}
	for _, tier := range a.Tiers {
		if err := tier.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AllocationTotal sums the allocation percentages across all assets.
func AllocationTotal(assets []*Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.AllocationPercent)
	}
	return total
}

// AllocationBalanced reports whether the allocation percentages sum to 100
// within AllocationTolerance. An unbalanced portfolio is surfaced as a
// warning; allocation math still runs with whatever percentages are set.
func AllocationBalanced(assets []*Asset) bool {
	diff := AllocationTotal(assets).Sub(decimal.NewFromInt(100)).Abs()
	return diff.LessThan(AllocationTolerance)
}
