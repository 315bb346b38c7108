package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// All repositories are scoped by an opaque user ID supplied by the
// authentication collaborator; no logic depends on the identity beyond
// scoping reads and writes.

// ConfigRepository defines the interface for capital config persistence operations
type ConfigRepository interface {
	// Get retrieves the user's capital config
	// Returns ErrNotFound when the user has no config yet
	Get(ctx context.Context, userID string) (*CapitalConfig, error)

	// Put creates or replaces the user's capital config
	Put(ctx context.Context, userID string, cfg *CapitalConfig) error
}

// AssetRepository defines the interface for asset persistence operations
type AssetRepository interface {
	// List retrieves all of the user's assets, including tiers and history
	List(ctx context.Context, userID string) ([]*Asset, error)

	// Get retrieves one asset by its ID
	// Returns ErrNotFound when the asset does not exist
	Get(ctx context.Context, userID, assetID string) (*Asset, error)

	// Put creates or replaces an asset and its tier table. The purchase
	// history is not written through Put; it only changes via
	// AppendPurchase and DeletePurchasesForWeek.
	Put(ctx context.Context, userID string, asset *Asset) error

	// Delete removes an asset and everything attached to it
	Delete(ctx context.Context, userID, assetID string) error

	// AppendPurchase appends one purchase to an asset's history
	AppendPurchase(ctx context.Context, userID, assetID string, p *Purchase) error

	// DeletePurchasesForWeek removes every purchase recorded for weekIndex
	// across all of the user's assets and returns how many were removed
	DeletePurchasesForWeek(ctx context.Context, userID string, weekIndex int) (int, error)

	// UpdateReferencePrice updates only the asset's reference price,
	// leaving unrelated fields untouched
	UpdateReferencePrice(ctx context.Context, userID, assetID string, price decimal.Decimal) error

	// ReplaceTiers swaps an asset's tier table wholesale
	ReplaceTiers(ctx context.Context, userID, assetID string, tiers []Tier) error
}

// PriceCacheRepository defines the interface for historical price cache operations
type PriceCacheRepository interface {
	// Get retrieves the cached entry for (providerID, day)
	// Returns (nil, nil) on a cache miss
	Get(ctx context.Context, userID, providerID string, day time.Time) (*PriceCacheEntry, error)

	// Put stores an entry if the key is not populated yet; an existing
	// entry is never overwritten (idempotent write-once per key)
	Put(ctx context.Context, userID string, entry *PriceCacheEntry) error
}
