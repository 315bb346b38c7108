package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/schedule"
)

// PortfolioSeeder ensures a first-time user starts with a usable plan: a
// default capital config and the default four-asset portfolio. Existing
// records are never touched.
type PortfolioSeeder struct {
	ConfigRepo domain.ConfigRepository
	AssetRepo  domain.AssetRepository
	Now        func() time.Time
	Log        zerolog.Logger
}

// NewPortfolioSeeder creates a new PortfolioSeeder instance
func NewPortfolioSeeder(configRepo domain.ConfigRepository, assetRepo domain.AssetRepository, log zerolog.Logger) *PortfolioSeeder {
	return &PortfolioSeeder{
		ConfigRepo: configRepo,
		AssetRepo:  assetRepo,
		Now:        time.Now,
		Log:        log,
	}
}

// Seed creates the default config and assets for users that have none yet
func (s *PortfolioSeeder) Seed(ctx context.Context, userID string) error {
	if err := s.seedConfig(ctx, userID); err != nil {
		return err
	}
	return s.seedAssets(ctx, userID)
}

func (s *PortfolioSeeder) seedConfig(ctx context.Context, userID string) error {
	_, err := s.ConfigRepo.Get(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	cfg := defaultConfig(s.Now())
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.ConfigRepo.Put(ctx, userID, cfg); err != nil {
		return err
	}
	s.Log.Info().Str("user", userID).Msg("default capital config seeded")
	return nil
}

func (s *PortfolioSeeder) seedAssets(ctx context.Context, userID string) error {
	existing, err := s.AssetRepo.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, asset := range DefaultAssets() {
		if err := asset.Validate(); err != nil {
			return err
		}
		if err := s.AssetRepo.Put(ctx, userID, asset); err != nil {
			return err
		}
	}
	s.Log.Info().Str("user", userID).Msg("default portfolio seeded")
	return nil
}

// defaultConfig starts a 12-week plan anchored on the first Monday from now,
// with 80% of a 10000 starting capital in play.
func defaultConfig(now time.Time) *domain.CapitalConfig {
	return &domain.CapitalConfig{
		StartingCapital: decimal.NewFromInt(10000),
		UsablePercent:   decimal.NewFromInt(80),
		DurationWeeks:   12,
		CurrentWeek:     1,
		StartDate:       schedule.NextMonday(now),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// fiveTiers builds the standard five-bracket ladder used by the default
// portfolio, from "Très haut" (halve the buy) down to "Très bas" (buy 1.5x).
func fiveTiers(p1, p2, p3, p4 string) []domain.Tier {
	return []domain.Tier{
		{Label: "Très haut", MinPrice: dec(p1), MaxPrice: nil, Coefficient: dec("0.5")},
		{Label: "Haut", MinPrice: dec(p2), MaxPrice: decPtr(p1), Coefficient: dec("0.75")},
		{Label: "Normal", MinPrice: dec(p3), MaxPrice: decPtr(p2), Coefficient: dec("1")},
		{Label: "Bas", MinPrice: dec(p4), MaxPrice: decPtr(p3), Coefficient: dec("1.25")},
		{Label: "Très bas", MinPrice: dec("0"), MaxPrice: decPtr(p4), Coefficient: dec("1.5")},
	}
}

// DefaultAssets returns the starter portfolio: BTC 50%, ETH 25%, SOL 20%,
// DOGE 5%, each with its own tier ladder and a placeholder reference price
// that the first refresh overwrites.
func DefaultAssets() []*domain.Asset {
	return []*domain.Asset{
		{
			ID:                "btc",
			DisplayName:       "BTC",
			ProviderID:        "bitcoin",
			AllocationPercent: dec("50"),
			ReferencePrice:    dec("45000"),
			Tiers:             fiveTiers("50000", "47000", "43000", "40000"),
		},
		{
			ID:                "eth",
			DisplayName:       "ETH",
			ProviderID:        "ethereum",
			AllocationPercent: dec("25"),
			ReferencePrice:    dec("2800"),
			Tiers:             fiveTiers("3200", "3000", "2600", "2400"),
		},
		{
			ID:                "sol",
			DisplayName:       "SOL",
			ProviderID:        "solana",
			AllocationPercent: dec("20"),
			ReferencePrice:    dec("120"),
			Tiers:             fiveTiers("150", "130", "110", "90"),
		},
		{
			ID:                "doge",
			DisplayName:       "DOGE",
			ProviderID:        "dogecoin",
			AllocationPercent: dec("5"),
			ReferencePrice:    dec("0.15"),
			Tiers:             fiveTiers("0.20", "0.17", "0.13", "0.10"),
		},
	}
}
