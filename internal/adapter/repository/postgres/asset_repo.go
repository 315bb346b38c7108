package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// assetRepository implements domain.AssetRepository
type assetRepository struct {
	db *DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) domain.AssetRepository {
	return &assetRepository{db: db}
}

// List retrieves all of the user's assets, including tiers and history
func (r *assetRepository) List(ctx context.Context, userID string) ([]*domain.Asset, error) {
	query := `
		SELECT id, display_name, provider_id, allocation_percent, reference_price
		FROM assets
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}

	for _, asset := range assets {
		if asset.Tiers, err = r.loadTiers(ctx, userID, asset.ID); err != nil {
			return nil, err
		}
		if asset.History, err = r.loadPurchases(ctx, userID, asset.ID); err != nil {
			return nil, err
		}
	}

	return assets, nil
}

// Get retrieves one asset by its ID
func (r *assetRepository) Get(ctx context.Context, userID, assetID string) (*domain.Asset, error) {
	query := `
		SELECT id, display_name, provider_id, allocation_percent, reference_price
		FROM assets
		WHERE user_id = $1 AND id = $2
	`

	row := r.db.QueryRowContext(ctx, query, userID, assetID)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if asset.Tiers, err = r.loadTiers(ctx, userID, assetID); err != nil {
		return nil, err
	}
	if asset.History, err = r.loadPurchases(ctx, userID, assetID); err != nil {
		return nil, err
	}

	return asset, nil
}

// Put creates or replaces an asset and its tier table. The purchase history
// only changes through AppendPurchase and DeletePurchasesForWeek.
func (r *assetRepository) Put(ctx context.Context, userID string, asset *domain.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO assets (user_id, id, display_name, provider_id, allocation_percent, reference_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			provider_id = EXCLUDED.provider_id,
			allocation_percent = EXCLUDED.allocation_percent,
			reference_price = EXCLUDED.reference_price
	`
	_, err = tx.ExecContext(ctx, query,
		userID,
		asset.ID,
		asset.DisplayName,
		asset.ProviderID,
		asset.AllocationPercent.String(),
		asset.ReferencePrice.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to put asset: %w", err)
	}

	if err := writeTiers(ctx, tx, userID, asset.ID, asset.Tiers); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes an asset; tiers and purchases cascade
func (r *assetRepository) Delete(ctx context.Context, userID, assetID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM assets WHERE user_id = $1 AND id = $2`, userID, assetID)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendPurchase appends one purchase to an asset's history
func (r *assetRepository) AppendPurchase(ctx context.Context, userID, assetID string, p *domain.Purchase) error {
	query := `
		INSERT INTO purchases (id, user_id, asset_id, week_index, quantity, price_at_purchase, amount_spent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		userID,
		assetID,
		p.WeekIndex,
		p.Quantity.String(),
		p.PriceAtPurchase.String(),
		p.AmountSpent.String(),
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append purchase: %w", err)
	}

	return nil
}

// DeletePurchasesForWeek removes every purchase recorded for weekIndex
// across all of the user's assets
func (r *assetRepository) DeletePurchasesForWeek(ctx context.Context, userID string, weekIndex int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM purchases WHERE user_id = $1 AND week_index = $2`, userID, weekIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to delete purchases for week %d: %w", weekIndex, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted purchases: %w", err)
	}
	return int(removed), nil
}

// UpdateReferencePrice updates only the asset's reference price
func (r *assetRepository) UpdateReferencePrice(ctx context.Context, userID, assetID string, price decimal.Decimal) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE assets SET reference_price = $1 WHERE user_id = $2 AND id = $3`,
		price.String(), userID, assetID)
	if err != nil {
		return fmt.Errorf("failed to update reference price: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceTiers swaps an asset's tier table wholesale
func (r *assetRepository) ReplaceTiers(ctx context.Context, userID, assetID string, tiers []domain.Tier) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeTiers(ctx, tx, userID, assetID, tiers); err != nil {
		return err
	}

	return tx.Commit()
}

// scanAsset reads one asset row from either *sql.Row or *sql.Rows.
func scanAsset(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Asset, error) {
	var asset domain.Asset
	var allocStr, refStr string

	err := row.Scan(
		&asset.ID,
		&asset.DisplayName,
		&asset.ProviderID,
		&allocStr,
		&refStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	if asset.AllocationPercent, err = decimal.NewFromString(allocStr); err != nil {
		return nil, fmt.Errorf("failed to parse allocation_percent: %w", err)
	}
	if asset.ReferencePrice, err = decimal.NewFromString(refStr); err != nil {
		return nil, fmt.Errorf("failed to parse reference_price: %w", err)
	}

	return &asset, nil
}

func (r *assetRepository) loadTiers(ctx context.Context, userID, assetID string) ([]domain.Tier, error) {
	query := `
		SELECT label, min_price, max_price, coefficient
		FROM tiers
		WHERE user_id = $1 AND asset_id = $2
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, userID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.Tier
	for rows.Next() {
		var tier domain.Tier
		var minStr, coeffStr string
		var maxStr sql.NullString

		if err := rows.Scan(&tier.Label, &minStr, &maxStr, &coeffStr); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		if tier.MinPrice, err = decimal.NewFromString(minStr); err != nil {
			return nil, fmt.Errorf("failed to parse min_price: %w", err)
		}
		if tier.Coefficient, err = decimal.NewFromString(coeffStr); err != nil {
			return nil, fmt.Errorf("failed to parse coefficient: %w", err)
		}
		// NULL max_price means the bracket has no upper bound.
		if maxStr.Valid {
			max, err := decimal.NewFromString(maxStr.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse max_price: %w", err)
			}
			tier.MaxPrice = &max
		}

		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tiers: %w", err)
	}

	return tiers, nil
}

func (r *assetRepository) loadPurchases(ctx context.Context, userID, assetID string) ([]domain.Purchase, error) {
	query := `
		SELECT id, week_index, quantity, price_at_purchase, amount_spent, created_at
		FROM purchases
		WHERE user_id = $1 AND asset_id = $2
		ORDER BY week_index, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		var qtyStr, priceStr, amountStr string

		if err := rows.Scan(&p.ID, &p.WeekIndex, &qtyStr, &priceStr, &amountStr, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if p.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity: %w", err)
		}
		if p.PriceAtPurchase, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("failed to parse price_at_purchase: %w", err)
		}
		if p.AmountSpent, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount_spent: %w", err)
		}

		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchases: %w", err)
	}

	return purchases, nil
}

func writeTiers(ctx context.Context, tx *sql.Tx, userID, assetID string, tiers []domain.Tier) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tiers WHERE user_id = $1 AND asset_id = $2`, userID, assetID); err != nil {
		return fmt.Errorf("failed to clear tiers: %w", err)
	}

	query := `
		INSERT INTO tiers (user_id, asset_id, position, label, min_price, max_price, coefficient)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, tier := range tiers {
		var max interface{}
		if tier.MaxPrice != nil {
			max = tier.MaxPrice.String()
		}
		if _, err := tx.ExecContext(ctx, query,
			userID,
			assetID,
			i,
			tier.Label,
			tier.MinPrice.String(),
			max,
			tier.Coefficient.String(),
		); err != nil {
			return fmt.Errorf("failed to insert tier: %w", err)
		}
	}

	return nil
}
