package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/schedule"
	"github.com/tlacombe/dcaplanner/internal/usecase/tier"
)

// PriceResolver resolves the price of a provider symbol on a calendar day.
// The unavailable sentinel flows through plan entries untouched; the engine
// never substitutes a fabricated value for it.
type PriceResolver interface {
	PriceAt(ctx context.Context, userID, providerID string, at time.Time) domain.Price
}

// AssetPlan is one asset's slice of a weekly plan. When Available is false
// only PlannedAmount carries meaning; price, coefficient, real amount and
// quantity were deliberately not computed.
type AssetPlan struct {
	AssetID       string
	DisplayName   string
	PlannedAmount decimal.Decimal
	Available     bool
	Price         decimal.Decimal
	TierLabel     string
	Coefficient   decimal.Decimal
	RealAmount    decimal.Decimal
	Quantity      decimal.Decimal
}

// WeeklyPlan is the engine's output for one schedule week.
type WeeklyPlan struct {
	WeekIndex         int
	AnchorDate        time.Time
	FutureWeek        bool
	PlannedThisWeek   decimal.Decimal
	Assets            []AssetPlan
	TotalReal         decimal.Decimal
	Difference        decimal.Decimal // TotalReal - PlannedThisWeek
	AllocationWarning bool
}

// Projection is the next-week outlook derived from recorded spend.
type Projection struct {
	RemainingCapital decimal.Decimal
	RemainingWeeks   int
	NextPlanned      decimal.Decimal
	Complete         bool
}

// Service is the allocation engine: a pure computation over a fresh snapshot
// of config, assets and resolved prices. Recomputing on the same snapshot
// yields the same plan.
type Service struct {
	ConfigRepo domain.ConfigRepository
	AssetRepo  domain.AssetRepository
	Prices     PriceResolver
	Now        func() time.Time
	Log        zerolog.Logger
}

// NewService creates a new planner Service instance
func NewService(configRepo domain.ConfigRepository, assetRepo domain.AssetRepository, prices PriceResolver, log zerolog.Logger) *Service {
	return &Service{
		ConfigRepo: configRepo,
		AssetRepo:  assetRepo,
		Prices:     prices,
		Now:        time.Now,
		Log:        log,
	}
}

var hundred = decimal.NewFromInt(100)

// ComputeWeeklyPlan derives the plan for one schedule week from the current
// snapshot. Weeks whose anchor Monday has not been reached yet come back with
// every asset marked unavailable; the pre-tier planned amount is still
// computed since it needs no price. A single asset whose price cannot be
// resolved degrades that asset only, never the whole plan.
func (s *Service) ComputeWeeklyPlan(ctx context.Context, userID string, weekIndex int) (*WeeklyPlan, error) {
	if weekIndex < 1 {
		return nil, domain.ValidationError("week index must be at least 1")
	}

	cfg, err := s.ConfigRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	assets, err := s.AssetRepo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}

	anchors := schedule.WeekAnchors(cfg.StartDate, cfg.DurationWeeks)
	now := s.Now()

	plan := &WeeklyPlan{
		WeekIndex:       weekIndex,
		FutureWeek:      schedule.IsFutureWeek(weekIndex, anchors, now),
		PlannedThisWeek: plannedForWeek(cfg, assets, weekIndex),
	}
	if weekIndex >= 1 && weekIndex <= len(anchors) {
		plan.AnchorDate = anchors[weekIndex-1]
	}

	if !domain.AllocationBalanced(assets) {
		plan.AllocationWarning = true
		s.Log.Warn().
			Str("total", domain.AllocationTotal(assets).String()).
			Msg("allocation percentages do not sum to 100")
	}

	for _, asset := range assets {
		entry := AssetPlan{
			AssetID:       asset.ID,
			DisplayName:   asset.DisplayName,
			PlannedAmount: plan.PlannedThisWeek.Mul(asset.AllocationPercent).Div(hundred),
		}

		if !plan.FutureWeek {
			price := s.Prices.PriceAt(ctx, userID, asset.ProviderID, plan.AnchorDate)
			if price.Known {
				res := tier.Resolve(asset.Tiers, price.Quote.EUR)
				entry.Available = true
				entry.Price = price.Quote.EUR
				entry.TierLabel = res.Label
				entry.Coefficient = res.Coefficient
				entry.RealAmount = entry.PlannedAmount.Mul(res.Coefficient)
				if price.Quote.EUR.IsPositive() {
					entry.Quantity = entry.RealAmount.Div(price.Quote.EUR)
				}
				plan.TotalReal = plan.TotalReal.Add(entry.RealAmount)
			} else {
				s.Log.Warn().
					Str("asset", asset.ID).
					Int("week", weekIndex).
					Msg("price unavailable, asset figures degraded")
			}
		}

		plan.Assets = append(plan.Assets, entry)
	}

	plan.Difference = plan.TotalReal.Sub(plan.PlannedThisWeek)
	return plan, nil
}

// plannedForWeek implements the floor-based weekly split: the remaining
// usable capital (after everything spent in earlier weeks) divided evenly
// over the weeks left, floored so the running sum can never overshoot the
// usable capital. The residual rolls into later weeks.
func plannedForWeek(cfg *domain.CapitalConfig, assets []*domain.Asset, weekIndex int) decimal.Decimal {
	remainingWeeks := cfg.DurationWeeks - weekIndex + 1
	if remainingWeeks <= 0 {
		return decimal.Zero
	}

	spent := decimal.Zero
	for _, a := range assets {
		spent = spent.Add(a.SpentBeforeWeek(weekIndex))
	}
	remaining := cfg.UsableCapital().Sub(spent)
	return remaining.Div(decimal.NewFromInt(int64(remainingWeeks))).Floor()
}

// ProjectNextWeek computes the outlook for the upcoming week from what was
// actually recorded, not from any plan: remaining capital is usable capital
// minus total recorded spend across all history.
func (s *Service) ProjectNextWeek(ctx context.Context, userID string) (*Projection, error) {
	cfg, err := s.ConfigRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	assets, err := s.AssetRepo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}

	spent := decimal.Zero
	for _, a := range assets {
		spent = spent.Add(a.TotalSpent())
	}

	p := &Projection{
		RemainingCapital: cfg.UsableCapital().Sub(spent),
		RemainingWeeks:   cfg.DurationWeeks - cfg.CurrentWeek,
	}
	if p.RemainingCapital.IsNegative() {
		p.RemainingCapital = decimal.Zero
	}
	if p.RemainingWeeks <= 0 {
		p.Complete = true
		p.NextPlanned = decimal.Zero
		return p, nil
	}
	p.NextPlanned = p.RemainingCapital.Div(decimal.NewFromInt(int64(p.RemainingWeeks))).Floor()
	return p, nil
}

// ConfirmWeek turns a week's plan into recorded purchases. The plan is
// recomputed from the freshest snapshot at call time and the confirm fails
// closed if the week turns out to be in the future or any asset's figures
// are unavailable. On success one purchase per asset is appended and the
// current week advances, capped at the plan duration.
func (s *Service) ConfirmWeek(ctx context.Context, userID string, weekIndex int) (*WeeklyPlan, error) {
	plan, err := s.ComputeWeeklyPlan(ctx, userID, weekIndex)
	if err != nil {
		return nil, err
	}
	if plan.FutureWeek {
		return nil, domain.ErrWeekInFuture
	}
	for _, entry := range plan.Assets {
		if !entry.Available {
			return nil, domain.ErrPlanIncomplete
		}
	}

	now := s.Now()
	for _, entry := range plan.Assets {
		p := &domain.Purchase{
			ID:              uuid.New(),
			WeekIndex:       weekIndex,
			Quantity:        entry.Quantity,
			PriceAtPurchase: entry.Price,
			AmountSpent:     entry.RealAmount,
			CreatedAt:       now,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if err := s.AssetRepo.AppendPurchase(ctx, userID, entry.AssetID, p); err != nil {
			return nil, fmt.Errorf("append purchase for %s: %w", entry.AssetID, err)
		}
	}

	cfg, err := s.ConfigRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}
	next := cfg.CurrentWeek + 1
	if next > cfg.DurationWeeks {
		next = cfg.DurationWeeks
	}
	cfg.CurrentWeek = next
	if err := s.ConfigRepo.Put(ctx, userID, cfg); err != nil {
		return nil, fmt.Errorf("advance current week: %w", err)
	}

	s.Log.Info().
		Int("week", weekIndex).
		Str("total_spent", plan.TotalReal.String()).
		Int("assets", len(plan.Assets)).
		Msg("week confirmed")
	return plan, nil
}

// ResetWeek removes every purchase recorded for weekIndex across all assets
// and reports how many were removed. The current week is left untouched;
// resetting an unconfirmed week is a harmless no-op.
func (s *Service) ResetWeek(ctx context.Context, userID string, weekIndex int) (int, error) {
	if weekIndex < 1 {
		return 0, domain.ValidationError("week index must be at least 1")
	}
	removed, err := s.AssetRepo.DeletePurchasesForWeek(ctx, userID, weekIndex)
	if err != nil {
		return 0, fmt.Errorf("reset week %d: %w", weekIndex, err)
	}
	s.Log.Info().Int("week", weekIndex).Int("removed", removed).Msg("week reset")
	return removed, nil
}
