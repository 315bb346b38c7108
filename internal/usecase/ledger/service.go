package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// AssetSummary aggregates one asset's purchase history. CurrentValue is
// marked to the asset's reference price, the last known market price.
type AssetSummary struct {
	AssetID          string
	DisplayName      string
	TotalQuantity    decimal.Decimal
	TotalInvested    decimal.Decimal
	AveragePrice     decimal.Decimal
	CurrentValue     decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	PnLPercent       decimal.Decimal
	PortfolioPercent decimal.Decimal // share of the portfolio's current value
}

// PortfolioSummary is the sum of the per-asset figures. PnLPercent derives
// from the portfolio totals, not from averaging per-asset percentages, so it
// is weighted correctly by construction.
type PortfolioSummary struct {
	Assets        []AssetSummary
	TotalInvested decimal.Decimal
	CurrentValue  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	PnLPercent    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// SummarizeAsset folds an asset's history into its aggregate figures. An
// empty history yields all zeros, never an error.
func SummarizeAsset(asset *domain.Asset) AssetSummary {
	s := AssetSummary{AssetID: asset.ID, DisplayName: asset.DisplayName}
	for _, p := range asset.History {
		s.TotalQuantity = s.TotalQuantity.Add(p.Quantity)
		s.TotalInvested = s.TotalInvested.Add(p.AmountSpent)
	}
	if s.TotalQuantity.IsPositive() {
		s.AveragePrice = s.TotalInvested.Div(s.TotalQuantity)
	}
	s.CurrentValue = s.TotalQuantity.Mul(asset.ReferencePrice)
	s.UnrealizedPnL = s.CurrentValue.Sub(s.TotalInvested)
	if s.TotalInvested.IsPositive() {
		s.PnLPercent = s.UnrealizedPnL.Div(s.TotalInvested).Mul(hundred)
	}
	return s
}

// Summarize folds every asset into a portfolio view and fills each asset's
// share of the portfolio's current value.
func Summarize(assets []*domain.Asset) PortfolioSummary {
	var out PortfolioSummary
	for _, asset := range assets {
		s := SummarizeAsset(asset)
		out.Assets = append(out.Assets, s)
		out.TotalInvested = out.TotalInvested.Add(s.TotalInvested)
		out.CurrentValue = out.CurrentValue.Add(s.CurrentValue)
	}
	out.UnrealizedPnL = out.CurrentValue.Sub(out.TotalInvested)
	if out.TotalInvested.IsPositive() {
		out.PnLPercent = out.UnrealizedPnL.Div(out.TotalInvested).Mul(hundred)
	}
	if out.CurrentValue.IsPositive() {
		for i := range out.Assets {
			out.Assets[i].PortfolioPercent = out.Assets[i].CurrentValue.Div(out.CurrentValue).Mul(hundred)
		}
	}
	return out
}
