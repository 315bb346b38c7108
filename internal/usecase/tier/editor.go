package tier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// EditorService handles tier table mutations for an asset
// Every operation validates the full resulting table before writing; a
// rejected edit leaves the stored table untouched.
type EditorService struct {
	AssetRepo domain.AssetRepository
	Log       zerolog.Logger
}

// NewEditorService creates a new EditorService instance
func NewEditorService(assetRepo domain.AssetRepository, log zerolog.Logger) *EditorService {
	return &EditorService{AssetRepo: assetRepo, Log: log}
}

// ValidateTable checks every tier and the descending-minimum ordering the
// resolver relies on.
func ValidateTable(tiers []domain.Tier) error {
	if len(tiers) == 0 {
		return domain.ValidationError("tier table cannot be empty")
	}
	for i, t := range tiers {
		if err := t.Validate(); err != nil {
			return err
		}
		if i > 0 && t.MinPrice.GreaterThan(tiers[i-1].MinPrice) {
			return domain.ValidationError("tier table must be sorted by descending minimum price")
		}
	}
	return nil
}

// ReplaceTable swaps an asset's whole tier table.
func (s *EditorService) ReplaceTable(ctx context.Context, userID, assetID string, tiers []domain.Tier) error {
	if err := ValidateTable(tiers); err != nil {
		return err
	}
	if _, err := s.AssetRepo.Get(ctx, userID, assetID); err != nil {
		return err
	}
	if err := s.AssetRepo.ReplaceTiers(ctx, userID, assetID, tiers); err != nil {
		return fmt.Errorf("replace tiers for %s: %w", assetID, err)
	}
	s.Log.Info().Str("asset", assetID).Int("tiers", len(tiers)).Msg("tier table replaced")
	return nil
}

// UpdateTier replaces the tier at index in the asset's table.
func (s *EditorService) UpdateTier(ctx context.Context, userID, assetID string, index int, tier domain.Tier) error {
	asset, err := s.AssetRepo.Get(ctx, userID, assetID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(asset.Tiers) {
		return domain.ValidationError("tier index out of range")
	}
	tiers := append([]domain.Tier(nil), asset.Tiers...)
	tiers[index] = tier
	return s.ReplaceTable(ctx, userID, assetID, tiers)
}

// AddTier inserts a tier, keeping the table sorted by descending minimum.
func (s *EditorService) AddTier(ctx context.Context, userID, assetID string, tier domain.Tier) error {
	asset, err := s.AssetRepo.Get(ctx, userID, assetID)
	if err != nil {
		return err
	}
	tiers := make([]domain.Tier, 0, len(asset.Tiers)+1)
	inserted := false
	for _, t := range asset.Tiers {
		if !inserted && tier.MinPrice.GreaterThan(t.MinPrice) {
			tiers = append(tiers, tier)
			inserted = true
		}
		tiers = append(tiers, t)
	}
	if !inserted {
		tiers = append(tiers, tier)
	}
	return s.ReplaceTable(ctx, userID, assetID, tiers)
}

// DeleteTier removes the tier at index. Deleting the last remaining tier is
// rejected: an asset must always keep at least one bracket.
func (s *EditorService) DeleteTier(ctx context.Context, userID, assetID string, index int) error {
	asset, err := s.AssetRepo.Get(ctx, userID, assetID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(asset.Tiers) {
		return domain.ValidationError("tier index out of range")
	}
	if len(asset.Tiers) == 1 {
		return domain.ValidationError("cannot delete the last tier of an asset")
	}
	tiers := append([]domain.Tier(nil), asset.Tiers[:index]...)
	tiers = append(tiers, asset.Tiers[index+1:]...)
	return s.ReplaceTable(ctx, userID, assetID, tiers)
}

// ApplyFibonacci rebuilds an asset's table from two reference price points
// using the Fibonacci retracement ladder.
func (s *EditorService) ApplyFibonacci(ctx context.Context, userID, assetID string, ath, low decimal.Decimal, ladder Ladder) error {
	tiers, err := GenerateFibonacci(ath, low, ladder)
	if err != nil {
		return err
	}
	return s.ReplaceTable(ctx, userID, assetID, tiers)
}
