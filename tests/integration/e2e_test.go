//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlacombe/dcaplanner/internal/adapter/repository/postgres"
	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/planner"
	"github.com/tlacombe/dcaplanner/internal/usecase/seeder"
)

var (
	db         *postgres.DB
	configRepo domain.ConfigRepository
	assetRepo  domain.AssetRepository
	cacheRepo  domain.PriceCacheRepository
)

const testUser = "integration-test-user"

// TestMain sets up the test environment
func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	db, err = postgres.NewDB(getDBConnectionString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}

	configRepo = postgres.NewConfigRepository(db)
	assetRepo = postgres.NewAssetRepository(db)
	cacheRepo = postgres.NewPriceCacheRepository(db)

	cleanup(ctx)
	code := m.Run()
	cleanup(ctx)

	os.Exit(code)
}

func getDBConnectionString() string {
	if s := os.Getenv("DB_CONN_STR"); s != "" {
		return s
	}
	return "host=localhost port=5432 user=postgres password=postgres dbname=dcaplanner sslmode=disable"
}

func cleanup(ctx context.Context) {
	db.ExecContext(ctx, "DELETE FROM purchases WHERE user_id = $1", testUser)
	db.ExecContext(ctx, "DELETE FROM tiers WHERE user_id = $1", testUser)
	db.ExecContext(ctx, "DELETE FROM assets WHERE user_id = $1", testUser)
	db.ExecContext(ctx, "DELETE FROM configs WHERE user_id = $1", testUser)
	db.ExecContext(ctx, "DELETE FROM price_cache WHERE user_id = $1", testUser)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixedPrices resolves every symbol to one EUR price for any day.
type fixedPrices struct {
	eur decimal.Decimal
}

func (f *fixedPrices) PriceAt(ctx context.Context, userID, providerID string, at time.Time) domain.Price {
	return domain.KnownPrice(domain.Quote{EUR: f.eur, USD: f.eur})
}

func TestSeedAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	cleanup(ctx)

	s := seeder.NewPortfolioSeeder(configRepo, assetRepo, zerolog.Nop())
	require.NoError(t, s.Seed(ctx, testUser))

	cfg, err := configRepo.Get(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, cfg.StartingCapital.Equal(dec("10000")))
	assert.Equal(t, 12, cfg.DurationWeeks)

	assets, err := assetRepo.List(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, assets, 4)

	btc, err := assetRepo.Get(ctx, testUser, "btc")
	require.NoError(t, err)
	require.Len(t, btc.Tiers, 5)
	assert.Nil(t, btc.Tiers[0].MaxPrice, "unbounded tier survives the NULL round trip")
	require.NotNil(t, btc.Tiers[1].MaxPrice)
	assert.True(t, btc.Tiers[1].MaxPrice.Equal(dec("50000")))

	// Seeding again must not duplicate or reset anything.
	require.NoError(t, s.Seed(ctx, testUser))
	assets, err = assetRepo.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, assets, 4)
}

func TestConfirmAndResetWeekLifecycle(t *testing.T) {
	ctx := context.Background()
	cleanup(ctx)

	require.NoError(t, seeder.NewPortfolioSeeder(configRepo, assetRepo, zerolog.Nop()).Seed(ctx, testUser))

	// Backdate the plan so week 1 is confirmable.
	cfg, err := configRepo.Get(ctx, testUser)
	require.NoError(t, err)
	cfg.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, configRepo.Put(ctx, testUser, cfg))

	svc := planner.NewService(configRepo, assetRepo, &fixedPrices{eur: dec("44000")}, zerolog.Nop())

	plan, err := svc.ConfirmWeek(ctx, testUser, 1)
	require.NoError(t, err)
	assert.True(t, plan.TotalReal.IsPositive())

	cfg, err = configRepo.Get(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.CurrentWeek)

	assets, err := assetRepo.List(ctx, testUser)
	require.NoError(t, err)
	recorded := 0
	for _, a := range assets {
		recorded += len(a.History)
	}
	assert.Equal(t, 4, recorded, "one purchase per asset")

	removed, err := svc.ResetWeek(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	removed, err = svc.ResetWeek(ctx, testUser, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "reset is idempotent")
}

func TestPriceCacheIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	cleanup(ctx)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := &domain.PriceCacheEntry{ProviderID: "bitcoin", Day: day, EUR: dec("45000"), USD: dec("49000")}
	require.NoError(t, cacheRepo.Put(ctx, testUser, first))

	// A second write for the same key must not clobber the original.
	second := &domain.PriceCacheEntry{ProviderID: "bitcoin", Day: day, EUR: dec("1"), USD: dec("1")}
	require.NoError(t, cacheRepo.Put(ctx, testUser, second))

	got, err := cacheRepo.Get(ctx, testUser, "bitcoin", day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.EUR.Equal(dec("45000")))

	miss, err := cacheRepo.Get(ctx, testUser, "bitcoin", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, miss, "a miss is (nil, nil)")
}
