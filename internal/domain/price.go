package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote holds one price point in both quote currencies. EUR is the primary
// currency: tier tables, reference prices and all allocation math are
// expressed in it. USD is informational.
type Quote struct {
	EUR decimal.Decimal
	USD decimal.Decimal
}

// Price is a quote that may be unavailable. "Unavailable" and "zero" are
// distinct states on purpose: a zero price is a real (degenerate) value,
// an unavailable one means no decision can be derived from it.
type Price struct {
	Quote Quote
	Known bool
}

// KnownPrice wraps a resolved quote.
func KnownPrice(q Quote) Price {
	return Price{Quote: q, Known: true}
}

// UnavailablePrice returns the sentinel for a price that could not be
// resolved (future date, provider failure, no cache entry).
func UnavailablePrice() Price {
	return Price{}
}

// PriceCacheEntry represents one immutable cached historical price, keyed by
// provider symbol and calendar day. Once populated for a past date the entry
// is treated as truth: historical prices do not change, so writes are
// idempotent and never overwrite.
type PriceCacheEntry struct {
	ProviderID string
	Day        time.Time // normalized to midnight UTC
	EUR        decimal.Decimal
	USD        decimal.Decimal
}

// CacheDay normalizes a timestamp to the midnight-UTC day used as a price
// cache key. Future days are never cached.
func CacheDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
