package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase represents one recorded buy for one asset in one schedule week.
// Purchases are immutable once created; the only removal path is the
// reset-week operation, which drops every purchase of a given week.
type Purchase struct {
	ID              uuid.UUID
	WeekIndex       int
	Quantity        decimal.Decimal
	PriceAtPurchase decimal.Decimal // primary quote currency
	AmountSpent     decimal.Decimal
	CreatedAt       time.Time
}

// Validate ensures the purchase adheres to domain rules
// Returns an error if validation fails
func (p *Purchase) Validate() error {
	if p.WeekIndex < 1 {
		return ValidationError("purchase week index must be at least 1")
	}
	if p.Quantity.IsNegative() {
		return ValidationError("purchase quantity cannot be negative")
	}
	if p.AmountSpent.IsNegative() {
		return ValidationError("purchase amount cannot be negative")
	}
	return nil
}

// SpentBeforeWeek sums the recorded spend on the asset for every week
// strictly earlier than weekIndex.
func (a *Asset) SpentBeforeWeek(weekIndex int) decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.History {
		if p.WeekIndex < weekIndex {
			total = total.Add(p.AmountSpent)
		}
	}
	return total
}

// TotalSpent sums the recorded spend on the asset across its whole history.
func (a *Asset) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.History {
		total = total.Add(p.AmountSpent)
	}
	return total
}
