package statistics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/ledger"
	"github.com/tlacombe/dcaplanner/internal/usecase/tier"
)

var hundred = decimal.NewFromInt(100)

// ROIEntry is one asset's unrealized return for the ranking view.
type ROIEntry struct {
	AssetID     string
	DisplayName string
	ROIPercent  decimal.Decimal
}

// RankByROI orders assets by unrealized return, best first. Assets with no
// history rank with a zero return rather than being dropped.
func RankByROI(assets []*domain.Asset) []ROIEntry {
	entries := make([]ROIEntry, 0, len(assets))
	for _, a := range assets {
		s := ledger.SummarizeAsset(a)
		entries = append(entries, ROIEntry{
			AssetID:     a.ID,
			DisplayName: a.DisplayName,
			ROIPercent:  s.PnLPercent,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ROIPercent.GreaterThan(entries[j].ROIPercent)
	})
	return entries
}

// DCAEfficiency compares the quantity actually accumulated against the
// hypothetical quantity a single lump-sum buy at the first purchase's price
// would have bought with the same total spend. Positive means averaging in
// beat the lump sum. The second return is false when the asset has no
// history or its first price is zero, in which case no comparison exists.
func DCAEfficiency(asset *domain.Asset) (decimal.Decimal, bool) {
	if len(asset.History) == 0 {
		return decimal.Zero, false
	}
	firstPrice := asset.History[0].PriceAtPurchase
	if !firstPrice.IsPositive() {
		return decimal.Zero, false
	}

	s := ledger.SummarizeAsset(asset)
	hypothetical := s.TotalInvested.Div(firstPrice)
	if !hypothetical.IsPositive() {
		return decimal.Zero, false
	}
	return s.TotalQuantity.Sub(hypothetical).Div(hypothetical).Mul(hundred), true
}

// CoefficientStats summarizes the tier coefficients realized across an
// asset's history. Coefficients are re-resolved from the tier table as it is
// configured now, not from what applied at purchase time: editing a tier
// table retroactively changes these figures. That makes them a view of the
// current strategy applied to past prices, not a historical record.
type CoefficientStats struct {
	Average      decimal.Decimal
	Purchases    int
	Distribution map[string]int // tier label -> purchase count
}

// RealizedCoefficients re-resolves each historical purchase's price against
// the asset's current tier table and aggregates the applied coefficients.
func RealizedCoefficients(asset *domain.Asset) CoefficientStats {
	stats := CoefficientStats{Distribution: make(map[string]int)}
	sum := decimal.Zero
	for _, p := range asset.History {
		res := tier.Resolve(asset.Tiers, p.PriceAtPurchase)
		sum = sum.Add(res.Coefficient)
		stats.Distribution[res.Label]++
		stats.Purchases++
	}
	if stats.Purchases > 0 {
		stats.Average = sum.Div(decimal.NewFromInt(int64(stats.Purchases)))
	}
	return stats
}

// DriftBand grades how far an asset's actual portfolio weight sits from its
// target allocation. The thresholds are a display convention.
type DriftBand string

const (
	DriftSmall    DriftBand = "small"
	DriftModerate DriftBand = "moderate"
	DriftLarge    DriftBand = "large"
)

var (
	driftModerateAt = decimal.NewFromInt(2)
	driftLargeAt    = decimal.NewFromInt(5)
)

// DriftEntry is one asset's target-versus-actual allocation comparison.
type DriftEntry struct {
	AssetID       string
	DisplayName   string
	TargetPercent decimal.Decimal
	ActualPercent decimal.Decimal
	Drift         decimal.Decimal // actual - target
	Band          DriftBand
}

// AllocationDrift compares each asset's share of the portfolio's current
// value against its configured allocation target. An empty portfolio yields
// zero actual weights, so drift equals the negated targets.
func AllocationDrift(assets []*domain.Asset) []DriftEntry {
	summary := ledger.Summarize(assets)
	entries := make([]DriftEntry, 0, len(assets))
	for i, a := range assets {
		e := DriftEntry{
			AssetID:       a.ID,
			DisplayName:   a.DisplayName,
			TargetPercent: a.AllocationPercent,
			ActualPercent: summary.Assets[i].PortfolioPercent,
		}
		e.Drift = e.ActualPercent.Sub(e.TargetPercent)
		e.Band = bandFor(e.Drift.Abs())
		entries = append(entries, e)
	}
	return entries
}

func bandFor(abs decimal.Decimal) DriftBand {
	switch {
	case abs.GreaterThanOrEqual(driftLargeAt):
		return DriftLarge
	case abs.GreaterThanOrEqual(driftModerateAt):
		return DriftModerate
	default:
		return DriftSmall
	}
}
