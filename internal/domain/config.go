package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CapitalConfig represents the user's DCA plan parameters
// The engine only ever reads a snapshot of it; mutations go through the
// ConfigRepository and produce a fresh snapshot on the next computation.
type CapitalConfig struct {
	StartingCapital decimal.Decimal
	UsablePercent   decimal.Decimal // portion of StartingCapital dedicated to the plan, 0-100
	DurationWeeks   int
	CurrentWeek     int // 1-based; DurationWeeks+1 means the plan is complete
	StartDate       time.Time
}

// Validate ensures the config adheres to domain rules
// Returns an error if validation fails
func (c *CapitalConfig) Validate() error {
	if c.StartingCapital.IsNegative() {
		return ValidationError("starting capital cannot be negative")
	}
	if c.UsablePercent.IsNegative() || c.UsablePercent.GreaterThan(decimal.NewFromInt(100)) {
		return ValidationError("usable percent must be between 0 and 100")
	}
	if c.DurationWeeks < 1 {
		return ValidationError("duration must be at least one week")
	}
	if c.CurrentWeek < 1 {
		return ValidationError("current week must be at least 1")
	}
	if c.CurrentWeek > c.DurationWeeks+1 {
		return ValidationError("current week cannot be more than one past the plan duration")
	}
	if c.StartDate.IsZero() {
		return ValidationError("start date is required")
	}
	return nil
}

// UsableCapital returns the portion of the starting capital allocated to the
// weekly schedule.
func (c *CapitalConfig) UsableCapital() decimal.Decimal {
	return c.StartingCapital.Mul(c.UsablePercent).Div(decimal.NewFromInt(100))
}

// ReserveCapital returns the portion of the starting capital kept out of the
// schedule. UsableCapital + ReserveCapital always equals StartingCapital.
func (c *CapitalConfig) ReserveCapital() decimal.Decimal {
	return c.StartingCapital.Sub(c.UsableCapital())
}

// Complete reports whether every scheduled week has been confirmed.
func (c *CapitalConfig) Complete() bool {
	return c.CurrentWeek > c.DurationWeeks
}
