package statistics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDCAEfficiency(t *testing.T) {
	// Two buys at 100 then 50: 2000 spent, 30 units accumulated. A lump sum
	// of 2000 at the first price 100 buys 20 units, so DCA came out 50% ahead.
	asset := &domain.Asset{
		ID: "btc",
		History: []domain.Purchase{
			{WeekIndex: 1, Quantity: dec("10"), PriceAtPurchase: dec("100"), AmountSpent: dec("1000")},
			{WeekIndex: 2, Quantity: dec("20"), PriceAtPurchase: dec("50"), AmountSpent: dec("1000")},
		},
	}

	eff, ok := DCAEfficiency(asset)
	require.True(t, ok)
	assert.True(t, eff.Equal(dec("50")), "got %s", eff)
}

func TestDCAEfficiency_NegativeWhenPricesRose(t *testing.T) {
	asset := &domain.Asset{
		ID: "btc",
		History: []domain.Purchase{
			{WeekIndex: 1, Quantity: dec("10"), PriceAtPurchase: dec("100"), AmountSpent: dec("1000")},
			{WeekIndex: 2, Quantity: dec("5"), PriceAtPurchase: dec("200"), AmountSpent: dec("1000")},
		},
	}

	eff, ok := DCAEfficiency(asset)
	require.True(t, ok)
	assert.True(t, eff.IsNegative())
}

func TestDCAEfficiency_NoHistory(t *testing.T) {
	_, ok := DCAEfficiency(&domain.Asset{ID: "btc"})
	assert.False(t, ok)
}

func TestDCAEfficiency_ZeroFirstPrice(t *testing.T) {
	asset := &domain.Asset{
		ID: "btc",
		History: []domain.Purchase{
			{WeekIndex: 1, Quantity: decimal.Zero, PriceAtPurchase: decimal.Zero, AmountSpent: decimal.Zero},
		},
	}
	_, ok := DCAEfficiency(asset)
	assert.False(t, ok)
}

func TestRankByROI(t *testing.T) {
	winner := &domain.Asset{
		ID: "sol", DisplayName: "Solana", ReferencePrice: dec("200"),
		History: []domain.Purchase{{WeekIndex: 1, Quantity: dec("10"), AmountSpent: dec("1000")}},
	}
	loser := &domain.Asset{
		ID: "doge", DisplayName: "Dogecoin", ReferencePrice: dec("0.05"),
		History: []domain.Purchase{{WeekIndex: 1, Quantity: dec("1000"), AmountSpent: dec("100")}},
	}
	idle := &domain.Asset{ID: "eth", DisplayName: "Ethereum", ReferencePrice: dec("3000")}

	ranked := RankByROI([]*domain.Asset{loser, idle, winner})
	require.Len(t, ranked, 3)

	assert.Equal(t, "sol", ranked[0].AssetID)   // +100%
	assert.Equal(t, "eth", ranked[1].AssetID)   // 0%, no history
	assert.Equal(t, "doge", ranked[2].AssetID)  // -50%
	assert.True(t, ranked[0].ROIPercent.Equal(dec("100")))
	assert.True(t, ranked[2].ROIPercent.Equal(dec("-50")))
}

func TestRealizedCoefficients_ReResolvesAgainstCurrentTable(t *testing.T) {
	asset := &domain.Asset{
		ID: "btc",
		Tiers: []domain.Tier{
			{Label: "Haut", MinPrice: dec("45000"), MaxPrice: nil, Coefficient: dec("0.5")},
			{Label: "Normal", MinPrice: dec("0"), MaxPrice: decPtr("45000"), Coefficient: dec("1")},
		},
		History: []domain.Purchase{
			{WeekIndex: 1, PriceAtPurchase: dec("47000")},
			{WeekIndex: 2, PriceAtPurchase: dec("40000")},
			{WeekIndex: 3, PriceAtPurchase: dec("30000")},
		},
	}

	stats := RealizedCoefficients(asset)
	assert.Equal(t, 3, stats.Purchases)
	// (0.5 + 1 + 1) / 3
	assert.Equal(t, "0.83", stats.Average.StringFixed(2))
	assert.Equal(t, map[string]int{"Haut": 1, "Normal": 2}, stats.Distribution)

	// Editing the table changes the reported figures for the same history.
	asset.Tiers[0].Coefficient = dec("0")
	stats = RealizedCoefficients(asset)
	assert.Equal(t, "0.67", stats.Average.StringFixed(2))
}

func TestRealizedCoefficients_EmptyHistory(t *testing.T) {
	stats := RealizedCoefficients(&domain.Asset{ID: "btc"})
	assert.Equal(t, 0, stats.Purchases)
	assert.True(t, stats.Average.IsZero())
	assert.Empty(t, stats.Distribution)
}

func TestAllocationDrift(t *testing.T) {
	btc := &domain.Asset{
		ID: "btc", AllocationPercent: dec("50"), ReferencePrice: dec("100"),
		History: []domain.Purchase{{WeekIndex: 1, Quantity: dec("6"), AmountSpent: dec("600")}},
	}
	eth := &domain.Asset{
		ID: "eth", AllocationPercent: dec("50"), ReferencePrice: dec("100"),
		History: []domain.Purchase{{WeekIndex: 1, Quantity: dec("4"), AmountSpent: dec("400")}},
	}

	entries := AllocationDrift([]*domain.Asset{btc, eth})
	require.Len(t, entries, 2)

	assert.True(t, entries[0].ActualPercent.Equal(dec("60")))
	assert.True(t, entries[0].Drift.Equal(dec("10")))
	assert.Equal(t, DriftLarge, entries[0].Band)

	assert.True(t, entries[1].Drift.Equal(dec("-10")))
	assert.Equal(t, DriftLarge, entries[1].Band)
}

func TestAllocationDrift_Bands(t *testing.T) {
	tests := []struct {
		abs  string
		want DriftBand
	}{
		{"0", DriftSmall},
		{"1.99", DriftSmall},
		{"2", DriftModerate},
		{"4.99", DriftModerate},
		{"5", DriftLarge},
		{"25", DriftLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bandFor(dec(tt.abs)), "abs=%s", tt.abs)
	}
}

func TestAllocationDrift_EmptyPortfolio(t *testing.T) {
	btc := &domain.Asset{ID: "btc", AllocationPercent: dec("50")}

	entries := AllocationDrift([]*domain.Asset{btc})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ActualPercent.IsZero())
	assert.True(t, entries[0].Drift.Equal(dec("-50")))
}
