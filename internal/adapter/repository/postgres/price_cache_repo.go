package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// priceCacheRepository implements domain.PriceCacheRepository
type priceCacheRepository struct {
	db *DB
}

// NewPriceCacheRepository creates a new price cache repository
func NewPriceCacheRepository(db *DB) domain.PriceCacheRepository {
	return &priceCacheRepository{db: db}
}

// Get retrieves the cached entry for (providerID, day); (nil, nil) on a miss
func (r *priceCacheRepository) Get(ctx context.Context, userID, providerID string, day time.Time) (*domain.PriceCacheEntry, error) {
	query := `
		SELECT eur, usd
		FROM price_cache
		WHERE user_id = $1 AND provider_id = $2 AND day = $3
	`

	var eurStr, usdStr string
	err := r.db.QueryRowContext(ctx, query, userID, providerID, domain.CacheDay(day)).Scan(&eurStr, &usdStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached price: %w", err)
	}

	entry := &domain.PriceCacheEntry{ProviderID: providerID, Day: domain.CacheDay(day)}
	if entry.EUR, err = decimal.NewFromString(eurStr); err != nil {
		return nil, fmt.Errorf("failed to parse cached eur price: %w", err)
	}
	if entry.USD, err = decimal.NewFromString(usdStr); err != nil {
		return nil, fmt.Errorf("failed to parse cached usd price: %w", err)
	}

	return entry, nil
}

// Put stores an entry unless the key is already populated; historical prices
// never change, so an existing row wins over a rewrite
func (r *priceCacheRepository) Put(ctx context.Context, userID string, entry *domain.PriceCacheEntry) error {
	query := `
		INSERT INTO price_cache (user_id, provider_id, day, eur, usd)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider_id, day) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		userID,
		entry.ProviderID,
		domain.CacheDay(entry.Day),
		entry.EUR.String(),
		entry.USD.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}

	return nil
}
